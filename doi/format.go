package doi

import (
	"github.com/ImageMarkup/isic/doi/doitypes"
	"github.com/ImageMarkup/isic/doi/internal/format"
	"github.com/ImageMarkup/isic/doi/internal/registry"
)

// FormatBytes renders a byte count for display, e.g. 1536 as "1.5 KB".
func FormatBytes(n int64) string {
	return format.Bytes(n, format.DefaultDecimals)
}

// FormatBytesPrecision is FormatBytes with an explicit number of decimals.
func FormatBytesPrecision(n int64, decimals int) string {
	return format.Bytes(n, decimals)
}

// RelationTypes returns the supported relation types in submission order.
func RelationTypes() []doitypes.RelationTypeConfig {
	return registry.RelationTypes()
}
