package handler

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/rl1809/inventory-tracker/internal/adapter/csvimport"
	"github.com/rl1809/inventory-tracker/internal/core/domain"
	"github.com/rl1809/inventory-tracker/internal/core/service"
	"github.com/rl1809/inventory-tracker/internal/core/shelflife"
	"github.com/rl1809/inventory-tracker/internal/logger"
	"github.com/rl1809/inventory-tracker/internal/port"
)

// Pinger reports whether the backing database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Options struct {
	CORSOrigin      string
	RateLimitMax    int
	RateLimitWindow time.Duration
	MaxUploadBytes  int64
}

type Deps struct {
	Inventory *service.InventoryService
	Receipts  *service.ReceiptService
	Dashboard *service.DashboardService
	Users     *service.UserService
	Tokens    port.TokenIssuer
	Cache     port.CacheRepository // nil disables rate limiting
	DB        Pinger
	Opts      Options
}

type HTTPHandler struct {
	inventory *service.InventoryService
	receipts  *service.ReceiptService
	dashboard *service.DashboardService
	users     *service.UserService
	tokens    port.TokenIssuer
	cache     port.CacheRepository
	db        Pinger
	opts      Options
	started   time.Time
}

func NewHTTPHandler(deps Deps) *HTTPHandler {
	if deps.Opts.MaxUploadBytes <= 0 {
		deps.Opts.MaxUploadBytes = 10 << 20
	}
	if deps.Opts.CORSOrigin == "" {
		deps.Opts.CORSOrigin = "*"
	}
	return &HTTPHandler{
		inventory: deps.Inventory,
		receipts:  deps.Receipts,
		dashboard: deps.Dashboard,
		users:     deps.Users,
		tokens:    deps.Tokens,
		cache:     deps.Cache,
		db:        deps.DB,
		opts:      deps.Opts,
		started:   time.Now(),
	}
}

func (h *HTTPHandler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(requestLogger)
	r.Use(recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{h.opts.CORSOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Idempotency-Key", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           600,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Use(h.rateLimit)

		r.Get("/health", h.HealthCheck)
		r.Post("/login", h.Login)
		r.Post("/register", h.Register)

		r.Group(func(r chi.Router) {
			r.Use(h.authenticate)

			r.Get("/profile", h.GetProfile)
			r.Put("/profile", h.UpdateProfile)
			r.Put("/change-password", h.ChangePassword)

			r.Group(func(r chi.Router) {
				r.Use(requireRole(domain.RoleManager))

				r.Post("/employees", h.CreateEmployee)
				r.Get("/employees", h.ListEmployees)
				r.Put("/employees/{id}", h.UpdateEmployee)
				r.Delete("/employees/{id}", h.DeleteEmployee)
				r.Post("/inventory/refresh-metrics", h.RefreshMetrics)
			})

			r.Post("/upload-csv", h.UploadCSV)
			r.Get("/inventory", h.ListInventory)
			r.Post("/inventory", h.CreateInventory)
			r.Get("/inventory/{id}", h.GetInventory)
			r.Put("/inventory/{id}", h.UpdateInventory)
			r.Delete("/inventory/{id}", h.DeleteInventory)
			r.Get("/unique-parts", h.UniqueParts)
			r.Get("/dashboard-kpis", h.DashboardKPIs)
			r.Get("/inventory-summary", h.InventorySummary)
			r.Post("/receipt", h.GenerateReceipt)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, &domain.NotFoundError{Entity: "route", ID: r.URL.Path})
	})

	return r
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status, code := "OK", http.StatusOK
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			logger.Ctx(r.Context()).Warn().Err(err).Msg("database ping failed")
			status, code = "DEGRADED", http.StatusServiceUnavailable
		}
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"uptime":    time.Since(h.started).Seconds(),
	})
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ValidationErrors{"id": "id must be a positive integer"}
	}
	return id, nil
}

func principal(r *http.Request) domain.Principal {
	p, _ := principalFrom(r.Context())
	return p
}

// Inventory

func queryInt(r *http.Request, key string, v domain.ValidationErrors) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		v.Add(key, key+" must be a positive integer")
		return 0
	}
	return n
}

func parseLotFilter(r *http.Request) (domain.LotFilter, error) {
	q := r.URL.Query()
	v := domain.ValidationErrors{}

	filter := domain.LotFilter{
		Part:         strings.TrimSpace(q.Get("jwl_part")),
		CustomerPart: strings.TrimSpace(q.Get("customer_part")),
		Batch:        strings.TrimSpace(q.Get("batch")),
		Search:       strings.TrimSpace(q.Get("search")),
		Page:         queryInt(r, "page", v),
		Limit:        queryInt(r, "limit", v),
	}
	if err := v.Err(); err != nil {
		return domain.LotFilter{}, err
	}

	var err error
	if filter.Mfg, err = shelflife.ParseRange(q.Get("mfg_start"), q.Get("mfg_end")); err != nil {
		return domain.LotFilter{}, err
	}
	if filter.Exp, err = shelflife.ParseRange(q.Get("exp_start"), q.Get("exp_end")); err != nil {
		return domain.LotFilter{}, err
	}
	return filter, nil
}

func (h *HTTPHandler) ListInventory(w http.ResponseWriter, r *http.Request) {
	filter, err := parseLotFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	page, err := h.inventory.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	data := make([]lotDTO, 0, len(page.Lots))
	for _, l := range page.Lots {
		data = append(data, toLotDTO(l))
	}
	writeJSON(w, http.StatusOK, lotPageDTO{
		Data:       data,
		Total:      page.Total,
		Page:       page.Page,
		Limit:      page.Limit,
		TotalPages: page.TotalPages(),
	})
}

func (h *HTTPHandler) GetInventory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	lot, err := h.inventory.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLotDTO(lot))
}

func (h *HTTPHandler) CreateInventory(w http.ResponseWriter, r *http.Request) {
	var req lotRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	lot, err := req.toDomain()
	if err != nil {
		writeError(w, r, err)
		return
	}

	created, err := h.inventory.Create(r.Context(), lot)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLotDTO(created))
}

func (h *HTTPHandler) UpdateInventory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req lotPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	patch, err := req.toDomain()
	if err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := h.inventory.Update(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLotDTO(updated))
}

func (h *HTTPHandler) DeleteInventory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.inventory.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Inventory item deleted successfully"})
}

func (h *HTTPHandler) UniqueParts(w http.ResponseWriter, r *http.Request) {
	parts, err := h.inventory.UniqueParts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := uniquePartsDTO{Parts: parts.Parts, CustomerParts: parts.CustomerParts}
	if out.Parts == nil {
		out.Parts = []string{}
	}
	if out.CustomerParts == nil {
		out.CustomerParts = []string{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) InventorySummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.inventory.Summary(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]partSummaryDTO, 0, len(summary))
	for _, s := range summary {
		out = append(out, partSummaryDTO{Part: s.Part, Description: s.Description, AvailableQty: s.Available})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) RefreshMetrics(w http.ResponseWriter, r *http.Request) {
	n, err := h.inventory.RefreshMetrics(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Metrics refreshed", "updated": n})
}

func (h *HTTPHandler) DashboardKPIs(w http.ResponseWriter, r *http.Request) {
	kpis, err := h.dashboard.KPIs(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toKPIsDTO(kpis))
}

var csvContentTypes = map[string]bool{
	"text/csv":                 true,
	"application/csv":          true,
	"application/vnd.ms-excel": true,
}

func (h *HTTPHandler) UploadCSV(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.opts.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, err)
			return
		}
		writeError(w, r, domain.ValidationErrors{"file": "No file uploaded"})
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, domain.ValidationErrors{"file": "No file uploaded"})
		return
	}
	defer file.Close()

	contentType := strings.TrimSpace(strings.Split(header.Header.Get("Content-Type"), ";")[0])
	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") && !csvContentTypes[contentType] {
		writeError(w, r, domain.ValidationErrors{"file": "Only CSV files are allowed"})
		return
	}

	result, err := csvimport.Load(r.Context(), file, h.inventory)
	if err != nil {
		writeError(w, r, err)
		return
	}

	logger.Ctx(r.Context()).Info().
		Str("file", header.Filename).
		Int("inserted", result.Inserted).
		Int("rows", result.TotalRows).
		Msg("csv upload completed")
	writeJSON(w, http.StatusOK, toImportResponse(result))
}

// Receipts

func (h *HTTPHandler) GenerateReceipt(w http.ResponseWriter, r *http.Request) {
	var req receiptRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	receipt, document, err := h.receipts.Generate(r.Context(), r.Header.Get("Idempotency-Key"), req.toDomain())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toReceiptResponse(receipt, base64.StdEncoding.EncodeToString(document)))
}

// Users

func (h *HTTPHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	session, err := h.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User:      toUserDTO(session.User),
	})
}

func (h *HTTPHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.users.Register(r.Context(), req.toNewUser())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "User created successfully", "user": toUserDTO(user)})
}

func (h *HTTPHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Profile(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": toUserDTO(user)})
}

func (h *HTTPHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	patch := req.toPatch()
	patch.Username, patch.Password = "", ""

	user, err := h.users.UpdateProfile(r.Context(), principal(r), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Profile updated successfully", "user": toUserDTO(user)})
}

func (h *HTTPHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.users.ChangePassword(r.Context(), principal(r), req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Password changed successfully"})
}

func (h *HTTPHandler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	employee, err := h.users.CreateEmployee(r.Context(), principal(r), req.toNewUser())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Employee created successfully", "employee": toUserDTO(employee)})
}

func (h *HTTPHandler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.users.ListEmployees(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]userDTO, 0, len(employees))
	for _, e := range employees {
		out = append(out, toUserDTO(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"employees": out})
}

func (h *HTTPHandler) UpdateEmployee(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	employee, err := h.users.UpdateEmployee(r.Context(), principal(r), id, req.toPatch())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Employee updated successfully", "employee": toUserDTO(employee)})
}

func (h *HTTPHandler) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.users.DeleteEmployee(r.Context(), principal(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Employee deleted successfully"})
}
