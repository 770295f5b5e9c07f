package handler

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/inventory-tracker/internal/core/domain"
	"github.com/rl1809/inventory-tracker/internal/core/service"
	"github.com/rl1809/inventory-tracker/internal/core/shelflife"
)

type lotDTO struct {
	ID           int64       `json:"id"`
	Part         string      `json:"jwl_part"`
	CustomerPart string      `json:"customer_part"`
	Description  string      `json:"description"`
	UOM          string      `json:"uom"`
	Batch        string      `json:"batch"`
	MfgDate      string      `json:"mfg_date"`
	ExpDate      string      `json:"exp_date"`
	Qty          int         `json:"qty"`
	Weight       json.Number `json:"weight"`
	AgeingDays   int         `json:"ageing_days"`
	DaysToExpiry int         `json:"days_to_expiry"`
	AgeingBucket string      `json:"ageing_bucket"`
	ExpiryRisk   string      `json:"expiry_risk"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func toLotDTO(l domain.Lot) lotDTO {
	m := l.Metrics()
	return lotDTO{
		ID:           l.ID,
		Part:         l.Part,
		CustomerPart: l.CustomerPart,
		Description:  l.Description,
		UOM:          l.UOM,
		Batch:        l.Batch,
		MfgDate:      l.MfgDate.Format(shelflife.ISOLayout),
		ExpDate:      l.ExpDate.Format(shelflife.ISOLayout),
		Qty:          l.Quantity,
		Weight:       json.Number(l.Weight.String()),
		AgeingDays:   m.AgeingDays,
		DaysToExpiry: m.DaysToExpiry,
		AgeingBucket: string(m.AgeingBucket),
		ExpiryRisk:   string(m.ExpiryRisk),
		CreatedAt:    l.CreatedAt,
		UpdatedAt:    l.UpdatedAt,
	}
}

type lotPageDTO struct {
	Data       []lotDTO `json:"data"`
	Total      int      `json:"total"`
	Page       int      `json:"page"`
	Limit      int      `json:"limit"`
	TotalPages int      `json:"totalPages"`
}

// lotRequest is the body of a create; every field is required.
type lotRequest struct {
	Part         string          `json:"jwl_part"`
	CustomerPart string          `json:"customer_part"`
	Description  string          `json:"description"`
	UOM          string          `json:"uom"`
	Batch        string          `json:"batch"`
	MfgDate      string          `json:"mfg_date"`
	ExpDate      string          `json:"exp_date"`
	Qty          *int            `json:"qty"`
	Weight       decimal.Decimal `json:"weight"`
}

func (req lotRequest) toDomain() (domain.Lot, error) {
	v := domain.ValidationErrors{}
	lot := domain.Lot{
		Part:         strings.TrimSpace(req.Part),
		CustomerPart: strings.TrimSpace(req.CustomerPart),
		Description:  strings.TrimSpace(req.Description),
		UOM:          strings.TrimSpace(req.UOM),
		Batch:        strings.TrimSpace(req.Batch),
		Weight:       req.Weight,
	}

	var err error
	if lot.MfgDate, err = shelflife.ParseDate(req.MfgDate); err != nil {
		v.Add("mfg_date", err.Error())
	}
	if lot.ExpDate, err = shelflife.ParseDate(req.ExpDate); err != nil {
		v.Add("exp_date", err.Error())
	}
	if req.Qty == nil {
		v.Add("qty", "quantity is required")
	} else {
		lot.Quantity = *req.Qty
	}

	if err := v.Err(); err != nil {
		return domain.Lot{}, err
	}
	return lot, nil
}

type lotPatchRequest struct {
	Part         *string          `json:"jwl_part"`
	CustomerPart *string          `json:"customer_part"`
	Description  *string          `json:"description"`
	UOM          *string          `json:"uom"`
	Batch        *string          `json:"batch"`
	MfgDate      *string          `json:"mfg_date"`
	ExpDate      *string          `json:"exp_date"`
	Qty          *int             `json:"qty"`
	Weight       *decimal.Decimal `json:"weight"`
}

func (req lotPatchRequest) toDomain() (domain.LotPatch, error) {
	patch := domain.LotPatch{
		Part:         req.Part,
		CustomerPart: req.CustomerPart,
		Description:  req.Description,
		UOM:          req.UOM,
		Batch:        req.Batch,
		Quantity:     req.Qty,
		Weight:       req.Weight,
	}

	v := domain.ValidationErrors{}
	if req.MfgDate != nil {
		d, err := shelflife.ParseDate(*req.MfgDate)
		if err != nil {
			v.Add("mfg_date", err.Error())
		}
		patch.MfgDate = &d
	}
	if req.ExpDate != nil {
		d, err := shelflife.ParseDate(*req.ExpDate)
		if err != nil {
			v.Add("exp_date", err.Error())
		}
		patch.ExpDate = &d
	}
	if err := v.Err(); err != nil {
		return domain.LotPatch{}, err
	}
	return patch, nil
}

type partSummaryDTO struct {
	Part         string `json:"jwl_part"`
	Description  string `json:"description"`
	AvailableQty int    `json:"available_qty"`
}

type uniquePartsDTO struct {
	Parts         []string `json:"jwl_parts"`
	CustomerParts []string `json:"customer_parts"`
}

type importResponse struct {
	Message       string        `json:"message"`
	InsertedCount int           `json:"insertedCount"`
	TotalRows     int           `json:"totalRows"`
	Skipped       []rowErrorDTO `json:"skipped"`
}

type rowErrorDTO struct {
	Line  int    `json:"line"`
	Error string `json:"error"`
}

func toImportResponse(res service.ImportResult) importResponse {
	skipped := make([]rowErrorDTO, 0, len(res.Skipped))
	for _, s := range res.Skipped {
		skipped = append(skipped, rowErrorDTO{Line: s.Line, Error: s.Error})
	}
	return importResponse{
		Message:       "CSV file processed successfully",
		InsertedCount: res.Inserted,
		TotalRows:     res.TotalRows,
		Skipped:       skipped,
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

type kpisDTO struct {
	TotalStock        int64          `json:"total_stock"`
	TotalItems        int            `json:"total_items"`
	PercentNearExpiry float64        `json:"percent_near_expiry"`
	AverageAgeing     float64        `json:"average_ageing"`
	AgeingBuckets     map[string]int `json:"ageing_buckets"`
	ExpiryRisk        map[string]int `json:"expiry_risk"`
}

func toKPIsDTO(k domain.KPIs) kpisDTO {
	out := kpisDTO{
		TotalStock:        k.TotalStock,
		TotalItems:        k.TotalItems,
		PercentNearExpiry: round2(k.PercentNearExpiry),
		AverageAgeing:     round2(k.AverageAgeing),
		AgeingBuckets:     make(map[string]int, len(k.AgeingBuckets)),
		ExpiryRisk:        make(map[string]int, len(k.ExpiryRisk)),
	}
	for b, n := range k.AgeingBuckets {
		out.AgeingBuckets[string(b)] = n
	}
	for r, n := range k.ExpiryRisk {
		out.ExpiryRisk[string(r)] = n
	}
	return out
}

type customerDTO struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

type receiptItemRequest struct {
	Part      string           `json:"jwl_part"`
	Qty       int              `json:"qty"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
}

type receiptRequest struct {
	Customer customerDTO          `json:"customer"`
	Items    []receiptItemRequest `json:"items"`
	TaxRate  *decimal.Decimal     `json:"tax_rate"`
}

func (req receiptRequest) toDomain() domain.ReceiptRequest {
	out := domain.ReceiptRequest{
		Customer: domain.Customer{
			Name:    strings.TrimSpace(req.Customer.Name),
			Address: strings.TrimSpace(req.Customer.Address),
			Email:   strings.TrimSpace(req.Customer.Email),
			Phone:   strings.TrimSpace(req.Customer.Phone),
		},
		Lines: make([]domain.LineRequest, 0, len(req.Items)),
	}
	if req.TaxRate != nil {
		out.TaxRate = *req.TaxRate
	}
	for _, item := range req.Items {
		line := domain.LineRequest{Part: strings.TrimSpace(item.Part), Quantity: item.Qty}
		if item.UnitPrice != nil {
			line.UnitPrice = *item.UnitPrice
		}
		out.Lines = append(out.Lines, line)
	}
	return out
}

type allocationDTO struct {
	LotID int64  `json:"lot_id"`
	Batch string `json:"batch"`
	Qty   int    `json:"qty"`
}

type receiptItemDTO struct {
	Part        string          `json:"jwl_part"`
	Description string          `json:"description"`
	Qty         int             `json:"qty"`
	UnitPrice   string          `json:"unit_price"`
	TotalPrice  string          `json:"total_price"`
	Allocations []allocationDTO `json:"allocations"`
}

type receiptResponse struct {
	Success       bool             `json:"success"`
	ReceiptNumber string           `json:"receipt_number"`
	CreatedAt     time.Time        `json:"created_at"`
	Customer      customerDTO      `json:"customer"`
	Items         []receiptItemDTO `json:"items"`
	Subtotal      string           `json:"subtotal"`
	TaxRate       string           `json:"tax_rate"`
	TaxAmount     string           `json:"tax_amount"`
	GrandTotal    string           `json:"grand_total"`
	PDFBase64     string           `json:"pdf_base64"`
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func toReceiptResponse(r domain.Receipt, pdfBase64 string) receiptResponse {
	items := make([]receiptItemDTO, 0, len(r.Lines))
	for _, line := range r.Lines {
		allocs := make([]allocationDTO, 0, len(line.Allocations))
		for _, a := range line.Allocations {
			allocs = append(allocs, allocationDTO{LotID: a.LotID, Batch: a.Batch, Qty: a.Quantity})
		}
		items = append(items, receiptItemDTO{
			Part:        line.Part,
			Description: line.Description,
			Qty:         line.Quantity,
			UnitPrice:   money(line.UnitPrice),
			TotalPrice:  money(line.LineTotal),
			Allocations: allocs,
		})
	}

	return receiptResponse{
		Success:       true,
		ReceiptNumber: r.Number,
		CreatedAt:     r.CreatedAt,
		Customer: customerDTO{
			Name:    r.Customer.Name,
			Address: r.Customer.Address,
			Email:   r.Customer.Email,
			Phone:   r.Customer.Phone,
		},
		Items:      items,
		Subtotal:   money(r.Subtotal),
		TaxRate:    r.TaxRate.String(),
		TaxAmount:  money(r.TaxAmount),
		GrandTotal: money(r.GrandTotal),
		PDFBase64:  pdfBase64,
	}
}

type userDTO struct {
	ID        int64      `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email,omitempty"`
	Role      string     `json:"role"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func toUserDTO(u domain.User) userDTO {
	out := userDTO{ID: u.ID, Username: u.Username, Email: u.Email, Role: string(u.Role)}
	if !u.CreatedAt.IsZero() {
		out.CreatedAt = &u.CreatedAt
	}
	if !u.UpdatedAt.IsZero() {
		out.UpdatedAt = &u.UpdatedAt
	}
	return out
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

func (req credentialsRequest) toNewUser() domain.NewUser {
	return domain.NewUser{
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
		Role:     domain.Role(req.Role),
	}
}

func (req credentialsRequest) toPatch() domain.UserPatch {
	return domain.UserPatch{
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
		Role:     domain.Role(req.Role),
	}
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      userDTO   `json:"user"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}
