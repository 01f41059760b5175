package inventory

import (
	"regexp"
	"strings"

	"github.com/conamormarket-lgtm/sistema-sub001/internal/shared"
)

// segmentPattern captures "<garment type> <color> (<size>)". The size
// must be parenthesized; paren-less segments go through the token
// heuristic instead.
var segmentPattern = regexp.MustCompile(`^(.+?)\s+(\S+)\s*\(([^)]+)\)$`)

// ResolveCollection maps a logical inventory identifier, possibly a
// dashed slug from flow configuration, to the backing collection name.
// Unknown identifiers pass through unchanged.
func ResolveCollection(inventoryID string) string {
	id := strings.TrimSpace(inventoryID)
	switch id {
	case "inventario-prendas":
		return CollectionGarments
	case "inventario-productos":
		return CollectionProducts
	}
	if strings.Contains(id, "-") {
		return strings.ReplaceAll(id, "-", "")
	}
	return id
}

// ParseLineItems parses the encoded size string carried by imported
// orders, e.g. "Polera Negro (M) - Polo Azul (S)". Segments that do not
// match the pattern fall back to a token heuristic: the last two tokens
// are color and size, the rest is the garment type. Segments with fewer
// than three tokens cannot name all three attributes and are returned in
// dropped so callers can warn about them.
func ParseLineItems(spec string) (lines []LineItem, dropped []string) {
	if strings.TrimSpace(spec) == "" {
		return nil, nil
	}
	for _, segment := range strings.Split(spec, " - ") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		if m := segmentPattern.FindStringSubmatch(segment); m != nil {
			lines = append(lines, LineItem{
				GarmentType: strings.TrimSpace(m[1]),
				Color:       strings.TrimSpace(m[2]),
				Size:        strings.TrimSpace(m[3]),
				Quantity:    1,
			})
			continue
		}
		tokens := strings.Fields(segment)
		if len(tokens) < 3 {
			dropped = append(dropped, segment)
			continue
		}
		lines = append(lines, LineItem{
			GarmentType: strings.Join(tokens[:len(tokens)-2], " "),
			Color:       tokens[len(tokens)-2],
			Size:        tokens[len(tokens)-1],
			Quantity:    1,
		})
	}
	return lines, dropped
}

// Match finds the stocked item for one line item. The comparison is
// case- and accent-insensitive and exact on all three attributes.
func Match(items []Item, line LineItem) *Item {
	for i := range items {
		if shared.FoldEqual(items[i].GarmentType, line.GarmentType) &&
			shared.FoldEqual(items[i].Color, line.Color) &&
			shared.FoldEqual(items[i].Size, line.Size) {
			return &items[i]
		}
	}
	return nil
}
