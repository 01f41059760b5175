package inventory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveCollection(t *testing.T) {
	require.Equal(t, "inventarioPrendas", ResolveCollection("inventario-prendas"))
	require.Equal(t, "inventarioProductos", ResolveCollection("inventario-productos"))
	require.Equal(t, "inventariotelas", ResolveCollection("inventario-telas"))
	require.Equal(t, "inventarioPrendas", ResolveCollection("inventarioPrendas"))
	require.Equal(t, "bodega", ResolveCollection("bodega"))
}

func TestParseLineItemsRoundTrip(t *testing.T) {
	lines, dropped := ParseLineItems("Polera Negro (M) - Polo Azul (S)")
	require.Empty(t, dropped)
	require.Equal(t, []LineItem{
		{GarmentType: "Polera", Color: "Negro", Size: "M", Quantity: 1},
		{GarmentType: "Polo", Color: "Azul", Size: "S", Quantity: 1},
	}, lines)
}

func TestParseLineItemsMultiWordType(t *testing.T) {
	lines, dropped := ParseLineItems("Polera Manga Larga Negro (M)")
	require.Empty(t, dropped)
	require.Equal(t, []LineItem{
		{GarmentType: "Polera Manga Larga", Color: "Negro", Size: "M", Quantity: 1},
	}, lines)
}

func TestParseLineItemsTokenFallback(t *testing.T) {
	lines, dropped := ParseLineItems("Polera Manga Larga Negro M")
	require.Empty(t, dropped)
	require.Len(t, lines, 1)
	require.Equal(t, "Polera Manga Larga", lines[0].GarmentType)
	require.Equal(t, "Negro", lines[0].Color)
	require.Equal(t, "M", lines[0].Size)
}

func TestParseLineItemsDropsShortSegments(t *testing.T) {
	lines, dropped := ParseLineItems("Polo S - Polera Negro (M)")
	require.Len(t, lines, 1)
	require.Equal(t, []string{"Polo S"}, dropped)
}

func TestParseLineItemsEmpty(t *testing.T) {
	lines, dropped := ParseLineItems("   ")
	require.Nil(t, lines)
	require.Nil(t, dropped)
}

func TestMatchIsAccentAndCaseInsensitive(t *testing.T) {
	items := []Item{
		{ID: "1", GarmentType: "polera", Color: "café", Size: "m"},
		{ID: "2", GarmentType: "Polo", Color: "Azul", Size: "S"},
	}
	found := Match(items, LineItem{GarmentType: "POLERA", Color: "CAFE", Size: "M"})
	require.NotNil(t, found)
	require.Equal(t, "1", found.ID)

	require.Nil(t, Match(items, LineItem{GarmentType: "Polo", Color: "Azul", Size: "XL"}))
}
