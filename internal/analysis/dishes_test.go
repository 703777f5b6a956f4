package analysis

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCleanLabel(t *testing.T) {
	require.Equal(t, "Caesar Salad", CleanLabel("caesar_salad"))
	require.Equal(t, "Pizza", CleanLabel("PIZZA"))
	require.Equal(t, "", CleanLabel("  "))
}

func TestDetectResolvesIngredients(t *testing.T) {
	d := Detect(Prediction{Label: "caesar_salad", Confidence: 0.91})
	require.Equal(t, "Caesar Salad", d.DishName)
	require.Equal(t, "Определено блюдо: Caesar Salad", d.Message)
	require.Equal(t, []string{"романо", "курица", "пармезан", "сухарики"}, d.BasicIngredients)

	partial := Detect(Prediction{Label: "margherita_pizza"})
	require.Equal(t, "тесто для пиццы", partial.BasicIngredients[0])

	short := Detect(Prediction{Label: "sushi_roll"})
	require.Contains(t, short.BasicIngredients, "нори")

	unknown := Detect(Prediction{Label: "pho"})
	require.Equal(t, []string{"основа", "соус", "специи"}, unknown.BasicIngredients)

	empty := Detect(Prediction{})
	require.Equal(t, fallbackDish, empty.DishName)
}

func TestDetectReturnsCopies(t *testing.T) {
	d := Detect(Prediction{Label: "pizza"})
	d.BasicIngredients[0] = "changed"
	require.Equal(t, "тесто для пиццы", Detect(Prediction{Label: "pizza"}).BasicIngredients[0])
}
