// Package render produces outgoing message text from a template and a product.
package render

import (
	"strings"

	"github.com/caparkapa-educatedear/hepsiburada-bot/internal/model"
)

// Message substitutes the placeholder tokens {name}, {price},
// {originalPrice}, {discountRate} and {url} with the product's fields.
// Absent optional fields become empty strings and unrecognized tokens are
// left verbatim. This is deliberately flat substitution, not a template
// language: no conditionals, no escaping, no recursive expansion.
func Message(content string, p model.Product) string {
	r := strings.NewReplacer(
		"{name}", p.Name,
		"{price}", p.Price,
		"{originalPrice}", p.OriginalPrice,
		"{discountRate}", p.DiscountRate,
		"{url}", p.URL,
	)
	return r.Replace(content)
}
