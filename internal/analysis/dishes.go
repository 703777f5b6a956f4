package analysis

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const fallbackDish = "салат"

type dishIngredients struct {
	key        string
	basic      []string
	additional []string
}

// dishCatalog maps classifier labels to ingredient lists. Order matters for
// partial matches.
var dishCatalog = []dishIngredients{
	{
		key:        "pizza",
		basic:      []string{"тесто для пиццы", "томатный соус", "сыр моцарелла"},
		additional: []string{"пепперони", "ветчина", "грибы", "оливки", "перец", "лук", "ананасы", "курица", "бекон", "салями"},
	},
	{
		key:        "caesar_salad",
		basic:      []string{"романо", "курица", "пармезан", "сухарики"},
		additional: []string{"черри", "бекон", "яйцо", "авокадо", "креветки"},
	},
	{
		key:        "hamburger",
		basic:      []string{"булочка для бургера", "говяжья котлета", "сыр чеддер"},
		additional: []string{"салат айсберг", "помидор", "лук", "огурцы", "бекон", "яйцо", "авокадо", "грибы", "соус"},
	},
	{
		key:        "sushi",
		basic:      []string{"рис для суши", "нори", "лосось", "огурец"},
		additional: []string{"тунец", "авокадо", "икра", "угорь", "сыр филадельфия", "краб", "васаби", "имбирь", "соус соевый"},
	},
	{
		key:        "spaghetti_bolognese",
		basic:      []string{"спагетти", "фарш говяжий", "томатный соус", "лук"},
		additional: []string{"морковь", "сельдерей", "сыр пармезан", "базилик", "чеснок", "грибы", "перец"},
	},
	{
		key:        "chocolate_cake",
		basic:      []string{"мука", "какао", "сахар", "яйца", "разрыхлитель"},
		additional: []string{"шоколад", "сливки", "ягоды", "орехи", "кокос", "ваниль", "кофе"},
	},
}

var defaultDish = dishIngredients{
	key:        "default",
	basic:      []string{"основа", "соус", "специи"},
	additional: []string{"дополнительные ингредиенты"},
}

// CleanLabel turns a classifier label such as "caesar_salad" into "Caesar Salad".
func CleanLabel(label string) string {
	words := strings.Fields(strings.ReplaceAll(label, "_", " "))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}

func dishKey(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// ingredientsFor looks a dish up by exact key, then by containment either way,
// then falls back to a generic list.
func ingredientsFor(name string) dishIngredients {
	key := dishKey(name)
	if key == "" {
		return defaultDish
	}
	for _, d := range dishCatalog {
		if d.key == key {
			return d
		}
	}
	for _, d := range dishCatalog {
		if strings.Contains(key, d.key) || strings.Contains(d.key, key) {
			return d
		}
	}
	return defaultDish
}

// Detect expands a prediction into a Detection.
func Detect(p Prediction) Detection {
	name := CleanLabel(p.Label)
	if name == "" {
		name = fallbackDish
	}
	d := ingredientsFor(name)
	return Detection{
		DishName:              name,
		Confidence:            p.Confidence,
		Message:               fmt.Sprintf("Определено блюдо: %s", name),
		BasicIngredients:      append([]string(nil), d.basic...),
		AdditionalIngredients: append([]string(nil), d.additional...),
	}
}

// degradedDetection is used when the classifier cannot be reached.
func degradedDetection(err error) Detection {
	d := Detect(Prediction{})
	d.Message = "Классификатор недоступен: " + err.Error()
	return d
}
