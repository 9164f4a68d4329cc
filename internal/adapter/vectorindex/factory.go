package vectorindex

import (
	"fmt"

	"docchat/internal/port"
)

// New returns the index store for a backend name.
func New(backend string) (port.IndexStore, error) {
	switch backend {
	case "", "flat":
		return NewFlatStore(), nil
	case "chromem":
		return NewChromemStore(), nil
	default:
		return nil, fmt.Errorf("unknown index backend: %s", backend)
	}
}
