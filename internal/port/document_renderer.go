package port

import "github.com/rl1809/inventory-tracker/internal/core/domain"

type DocumentRenderer interface {
	// Render produces the printable receipt document
	Render(receipt domain.Receipt) ([]byte, error)

	// ContentType is the MIME type of the rendered bytes
	ContentType() string
}
