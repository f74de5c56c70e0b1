package pages

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"sg-checkout/web/templates/components"
)

// LoginPageData is rendered on the sign-in landing page
type LoginPageData struct {
	Tab      string
	Redirect string
	DevLogin bool
	Error    string
}

// LoginPage renders the sign-in landing page
func LoginPage(data LoginPageData) templ.Component {
	heading := "Sign in"
	if data.Tab == "register" {
		heading = "Create an account"
	}
	return components.Layout(heading, nil, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := components.NewWriter(w)
		hw.Raw(`<section class="bg-white rounded-lg shadow p-8">`)
		hw.Raw(`<h1 class="text-2xl font-bold mb-4">`)
		hw.Text(heading)
		hw.Raw(`</h1>`)
		if data.Error != "" {
			hw.Raw(`<p class="bg-red-50 text-red-800 p-3 rounded mb-4">`)
			hw.Text(data.Error)
			hw.Raw(`</p>`)
		}
		if !data.DevLogin {
			hw.Raw(`<p class="text-gray-600">Use the account menu on the site to sign in, then return to checkout.</p>`)
		} else {
			hw.Raw(`<form method="post" action="/dev/login" class="space-y-4">`)
			hw.Rawf(`<input type="hidden" name="redirect" value="%s">`, components.Attr(data.Redirect))
			hw.Raw(`<label class="block"><span class="text-sm text-gray-700">Email</span>`)
			hw.Raw(`<input type="email" name="email" required class="mt-1 w-full border rounded px-3 py-2"></label>`)
			hw.Raw(`<button type="submit" class="w-full px-4 py-2 rounded bg-gray-900 text-white">Continue</button>`)
			hw.Raw(`</form>`)
		}
		hw.Rawf(`<a class="block mt-6 text-sm underline" href="%s">Back to checkout</a>`, components.URL(data.Redirect))
		hw.Raw(`</section>`)
		return hw.Err()
	}))
}
