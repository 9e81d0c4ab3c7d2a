package products

import (
	"strings"

	"github.com/constructa/propostas/internal/platform/httpx"
)

func normalize(f ProductForm) ProductForm {
	f.Code = strings.ToUpper(strings.TrimSpace(f.Code))
	f.Name = strings.TrimSpace(f.Name)
	f.Description = strings.TrimSpace(f.Description)
	f.Unit = strings.ToUpper(strings.TrimSpace(f.Unit))
	if f.Unit == "" {
		f.Unit = "UN"
	}
	return f
}

func (s *Service) validate(f ProductForm) error {
	return httpx.Validate(f)
}
