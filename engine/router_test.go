package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeywordRouterBasics(t *testing.T) {
	assert := assert.New(t)
	router := DefaultKeywordRouter()

	assert.Equal([]string{"cpsc"},
		router.Route(RouteInput{Text: "Toddler magnet building set"}))

	assert.Equal([]string{"fda-drug"},
		router.Route(RouteInput{Text: "Daily SPF 50 sunscreen lotion"}))

	assert.Equal([]string{"fda-food"},
		router.Route(RouteInput{Text: "Crunchy granola with peanuts"}))

	assert.Equal([]string{"fda-device"},
		router.Route(RouteInput{Text: "USB-C power bank, 20000mAh lithium cells"}))
}

func TestKeywordRouterMultipleDomains(t *testing.T) {
	assert := assert.New(t)
	router := DefaultKeywordRouter()

	domains := router.Route(RouteInput{Text: "Vitamin gummy snack for children"})
	assert.ElementsMatch([]string{"fda-drug", "fda-food", "cpsc"}, domains)
}

func TestKeywordRouterFallbackToAllDomains(t *testing.T) {
	assert := assert.New(t)
	router := DefaultKeywordRouter()

	// nothing matches: every domain gets a look
	domains := router.Route(RouteInput{Text: "Classic cotton t-shirt, plain white"})
	assert.ElementsMatch([]string{"fda-drug", "fda-food", "fda-device", "cpsc"}, domains)
}

func TestKeywordRouterCategoryAndTags(t *testing.T) {
	assert := assert.New(t)
	router := DefaultKeywordRouter()

	assert.Equal([]string{"cpsc"},
		router.Route(RouteInput{Text: "Red wagon", Category: "Toys"}))

	assert.Equal([]string{"cpsc"},
		router.Route(RouteInput{Text: "Baby transport", Tags: []string{"stroller"}}))
}

func TestKeywordRouterNormalization(t *testing.T) {
	assert := assert.New(t)
	router := DefaultKeywordRouter()

	// diacritics are stripped before matching
	assert.Equal([]string{"fda-drug"},
		router.Route(RouteInput{Text: "Sérum hydratant visage"}))

	assert.Equal([]string{"cpsc"},
		router.Route(RouteInput{Text: "MAGNET TILES MEGA PACK"}))
}
