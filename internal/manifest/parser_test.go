package manifest

import (
	"strings"
	"testing"

	"manifest-route-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoBlockManifest = `Riepilogo giro
Posizioni
1 Consegna 4 pacchi
Via Roma 10
Scala B
Milano
12
2 Consegna programmata 9:00 – 12:30
Corso Buenos Aires 5
20124 Milano
`

func TestParseTwoBlocks(t *testing.T) {
	res := Parse(twoBlockManifest)

	require.Len(t, res.Stops, 2)
	assert.Empty(t, res.Dropped)

	first := res.Stops[0]
	assert.Equal(t, 1, first.StopIndex)
	assert.Equal(t, domain.StopKindDelivery, first.Kind)
	require.NotNil(t, first.PackageCount)
	assert.Equal(t, 4, *first.PackageCount)
	require.NotNil(t, first.City)
	assert.Equal(t, "Milano", *first.City)
	assert.Equal(t, "Via Roma 10 Scala B", first.Address)
	assert.Nil(t, first.DeliveryWindow)

	second := res.Stops[1]
	assert.Equal(t, 2, second.StopIndex)
	require.NotNil(t, second.DeliveryWindow)
	assert.Equal(t, "09:00-12:30", *second.DeliveryWindow)
	assert.Nil(t, second.PackageCount)
	assert.Nil(t, second.City)
	assert.Equal(t, "Corso Buenos Aires 5 20124 Milano", second.Address)
}

func TestParsePickupWithoutCity(t *testing.T) {
	res := Parse("Ritira 2 colli\nVia Garibaldi 5\nScala C\n")

	require.Len(t, res.Stops, 1)
	stop := res.Stops[0]
	assert.Equal(t, domain.StopKindPickup, stop.Kind)
	require.NotNil(t, stop.PackageCount)
	assert.Equal(t, 2, *stop.PackageCount)
	assert.Nil(t, stop.City)
	assert.Equal(t, "Via Garibaldi 5 Scala C", stop.Address)
}

func TestParseCityFallbackOnLastFragment(t *testing.T) {
	res := Parse("3 Consegna\nVia Roma\nTorino\n")

	require.Len(t, res.Stops, 1)
	require.NotNil(t, res.Stops[0].City)
	assert.Equal(t, "Torino", *res.Stops[0].City)
	assert.Equal(t, "Via Roma", res.Stops[0].Address)
}

func TestParseCityWithoutHouseNumber(t *testing.T) {
	res := Parse("1 Consegna\nVia Roma\nMilano\nCitofono Rossi\n")

	require.Len(t, res.Stops, 1)
	require.NotNil(t, res.Stops[0].City)
	assert.Equal(t, "Milano", *res.Stops[0].City)
	assert.Equal(t, "Via Roma", res.Stops[0].Address)
}

func TestParseWindowOnAddressLine(t *testing.T) {
	res := Parse("1 Consegna\nVia Roma 10 9:00-12:00\n2 Consegna\nFascia oraria: 14:00 - 16:30\nVia Po 1\nTorino\n")

	require.Len(t, res.Stops, 2)
	assert.Empty(t, res.Dropped)

	first := res.Stops[0]
	assert.Equal(t, "Via Roma 10", first.Address)
	require.NotNil(t, first.DeliveryWindow)
	assert.Equal(t, "09:00-12:00", *first.DeliveryWindow)

	second := res.Stops[1]
	assert.Equal(t, "Via Po 1", second.Address)
	require.NotNil(t, second.City)
	assert.Equal(t, "Torino", *second.City)
	require.NotNil(t, second.DeliveryWindow)
	assert.Equal(t, "14:00-16:30", *second.DeliveryWindow)
}

func TestParseSingleFragmentIsNeverCity(t *testing.T) {
	res := Parse("5 Delivery\nSpringfield\n")

	require.Len(t, res.Stops, 1)
	assert.Nil(t, res.Stops[0].City)
	assert.Equal(t, "Springfield", res.Stops[0].Address)
}

func TestParseDropsBlocksWithoutAddress(t *testing.T) {
	raw := "1 Consegna\n3 pacchi\n2 Consegna\nVia Po 1\n"

	res := Parse(raw)

	require.Len(t, res.Stops, 1)
	assert.Equal(t, 1, res.Stops[0].StopIndex)
	assert.Equal(t, "Via Po 1", res.Stops[0].Address)
	require.Len(t, res.Dropped, 1)
	assert.Equal(t, 1, res.Dropped[0].Line)
	assert.Equal(t, "1 Consegna", res.Dropped[0].Header)
}

func TestParseBareCountLine(t *testing.T) {
	res := Parse("7 Consegna\nColli: 3\nVia Dante 8\n")

	require.Len(t, res.Stops, 1)
	require.NotNil(t, res.Stops[0].PackageCount)
	assert.Equal(t, 3, *res.Stops[0].PackageCount)
	assert.Equal(t, "Via Dante 8", res.Stops[0].Address)
}

func TestParseNormalizesGlyphsAndWhitespace(t *testing.T) {
	raw := "\ufeff#4 Pickup\n•  Via\u200b  Verdi  12\n  •\n\tBologna  \n"

	res := Parse(raw)

	require.Len(t, res.Stops, 1)
	assert.Equal(t, "Via Verdi 12", res.Stops[0].Address)
	assert.Equal(t, domain.StopKindPickup, res.Stops[0].Kind)
	require.NotNil(t, res.Stops[0].City)
	assert.Equal(t, "Bologna", *res.Stops[0].City)
}

func TestParseIgnoresPreambleAndNoise(t *testing.T) {
	res := Parse("Via Ignorata 1\n--\n42\n")

	assert.Empty(t, res.Stops)
	assert.Empty(t, res.Dropped)
}

func TestParseKeepsDuplicateHeadersAndFlagsThem(t *testing.T) {
	raw := "1 Consegna\nVia Roma 10\nMilano\n1 Consegna\nVia Roma 1O\nMilano\n"

	res := Parse(raw)

	require.Len(t, res.Stops, 2)
	assert.Nil(t, res.Stops[0].SuspectedDuplicate)
	require.NotNil(t, res.Stops[1].SuspectedDuplicate)
	assert.Equal(t, 1, *res.Stops[1].SuspectedDuplicate)
}

func TestParseProperties(t *testing.T) {
	inputs := []string{
		"",
		twoBlockManifest,
		"1 Consegna\n\n\n   Via   Roma    3  \n\n2 Ritiro\n\n3 Consegna\nPiazza Duomo 1\nMilano\n",
		strings.Repeat("9 Consegna 1 pacco\nVia Larga 2\n•\n", 30),
	}

	for _, raw := range inputs {
		res := Parse(raw)

		for i, s := range res.Stops {
			assert.Equal(t, i+1, s.StopIndex)
			assert.NotEmpty(t, s.Address)
			assert.NotContains(t, s.Address, "  ")
			assert.Equal(t, strings.TrimSpace(s.Address), s.Address)
		}

		assert.Equal(t, res, Parse(raw), "parse must be deterministic")
	}
}

func TestMatchers(t *testing.T) {
	t.Run("header needs keyword and number", func(t *testing.T) {
		assert.True(t, isHeader("12 Consegna"))
		assert.True(t, isHeader("Consegna 4 pacchi"))
		assert.True(t, isHeader("Stop #3 scheduled"))
		assert.False(t, isHeader("Consegna programmata"))
		assert.False(t, isHeader("Consegna 09:00-12:00"))
		assert.False(t, isHeader("Via Roma 10"))
	})

	t.Run("window pads hours", func(t *testing.T) {
		w, ok := matchWindow("fascia 8:30.10:00")
		require.True(t, ok)
		assert.Equal(t, "08:30-10:00", w)

		_, ok = matchWindow("Via Roma 10")
		assert.False(t, ok)
	})

	t.Run("strip window", func(t *testing.T) {
		assert.Equal(t, "Via Roma 10", stripWindow("Via Roma 10 9:00-12:00"))
		assert.Equal(t, "Via Roma 10", stripWindow("Via Roma 10, 9:00 – 12:00"))
		assert.Equal(t, "", stripWindow("Fascia oraria: 8:30.10:00"))
		assert.Equal(t, "", stripWindow("09:00-12:00"))
	})

	t.Run("city shape", func(t *testing.T) {
		assert.True(t, looksLikeCity("Reggio nell'Emilia"))
		assert.True(t, looksLikeCity("Milano (MI)"))
		assert.False(t, looksLikeCity("20124 Milano"))
		assert.False(t, looksLikeCity("Piazza Duomo"))
		assert.False(t, looksLikeCity(strings.Repeat("a", 41)))
	})

	t.Run("noise", func(t *testing.T) {
		assert.True(t, isNoise("7"))
		assert.True(t, isNoise("-*-"))
		assert.True(t, isNoise("POSIZIONI"))
		assert.False(t, isNoise("1234"))
	})
}
