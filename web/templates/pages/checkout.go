package pages

import (
	"context"
	"io"
	"net/url"
	"time"

	"github.com/a-h/templ"

	"sg-checkout/internal/checkout"
	"sg-checkout/internal/models"
	"sg-checkout/web/templates/components"
)

// CheckoutPageData is everything the checkout page renders
type CheckoutPageData struct {
	View           checkout.View
	PublishableKey string
	CashAppQR      string // data URI, empty when no Cash App tag is configured
	Toasts         []models.Toast
}

// CheckoutPage renders the full checkout document
func CheckoutPage(data CheckoutPageData) templ.Component {
	title := "Checkout"
	if data.View.Checkout.EventTitle != "" {
		title = "Checkout: " + data.View.Checkout.EventTitle
	}
	return components.Layout(title, data.Toasts, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := components.NewWriter(w)
		// every request below carries the page's checkout id
		hw.Rawf(`<div id="checkout-page" hx-vals='{"checkout":"%s"}'>`, components.Attr(data.View.CheckoutID))
		hw.Component(ctx, OrderSummary(data.View.Checkout))
		hw.Component(ctx, BranchSection(data))
		hw.Raw(`</div>`)
		return hw.Err()
	}))
}

// OrderSummary renders the event, ticket and amount
func OrderSummary(c models.CheckoutContext) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := components.NewWriter(w)
		hw.Raw(`<section class="bg-white rounded-lg shadow p-6 mb-6"><h1 class="text-2xl font-bold mb-4">Order summary</h1>`)
		hw.Raw(`<dl class="space-y-2">`)
		if c.EventTitle != "" {
			hw.Raw(`<div class="flex justify-between"><dt class="text-gray-600">Event</dt><dd>`)
			hw.Text(c.EventTitle)
			hw.Raw(`</dd></div>`)
		}
		if c.TicketName != "" {
			hw.Raw(`<div class="flex justify-between"><dt class="text-gray-600">Ticket</dt><dd>`)
			hw.Text(c.TicketName)
			hw.Raw(`</dd></div>`)
		}
		hw.Raw(`<div class="flex justify-between font-semibold border-t pt-2"><dt>Total</dt><dd>`)
		if c.IsFree() {
			hw.Raw(`Free`)
		} else {
			hw.Text(c.DisplayAmount())
		}
		hw.Raw(`</dd></div></dl></section>`)
		return hw.Err()
	})
}

// BranchSection renders the part of the page chosen by the controller
func BranchSection(data CheckoutPageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := components.NewWriter(w)
		hw.Raw(`<div id="checkout-branch">`)
		switch data.View.Branch {
		case models.BranchLoading:
			hw.Raw(`<div class="text-center py-12 text-gray-600" hx-get="/checkout/branch" hx-trigger="load delay:500ms" hx-target="#checkout-branch" hx-swap="outerHTML">`)
			hw.Raw(`<div class="animate-spin inline-block h-8 w-8 border-4 border-gray-300 border-t-gray-900 rounded-full"></div>`)
			hw.Raw(`<p class="mt-4">Checking your session...</p></div>`)
		case models.BranchAuthRequired:
			hw.Component(ctx, AuthRequired("Sign in to continue", "You need an account to buy tickets."))
		case models.BranchFreeTicket:
			hw.Component(ctx, ClaimSection(data.View))
		case models.BranchPaid:
			hw.Component(ctx, PaymentSection(data))
		}
		hw.Raw(`</div>`)
		return hw.Err()
	})
}

// AuthRequired renders the sign-in prompt
func AuthRequired(heading, message string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := components.NewWriter(w)
		hw.Raw(`<section class="bg-white rounded-lg shadow p-6 text-center">`)
		hw.Raw(`<h2 class="text-xl font-semibold mb-2">`)
		hw.Text(heading)
		hw.Raw(`</h2><p class="text-gray-600 mb-6">`)
		hw.Text(message)
		hw.Raw(`</p>`)
		hw.Component(ctx, authButtons())
		hw.Raw(`</section>`)
		return hw.Err()
	})
}

func authButtons() templ.Component {
	return templ.Raw(`<div class="flex justify-center gap-3">` +
		`<button class="px-4 py-2 rounded bg-gray-900 text-white" hx-post="/checkout/auth/signin">Sign In</button>` +
		`<button class="px-4 py-2 rounded border border-gray-900" hx-post="/checkout/auth/register">Create Account</button>` +
		`</div>`)
}

// ClaimSection renders the free ticket claim button
func ClaimSection(view checkout.View) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := components.NewWriter(w)
		hw.Raw(`<section id="claim-section" class="bg-white rounded-lg shadow p-6">`)
		hw.Raw(`<h2 class="text-xl font-semibold mb-2">This ticket is free</h2>`)
		if view.User == nil {
			hw.Raw(`<p class="text-gray-600 mb-4">Sign in to claim your ticket.</p>`)
			hw.Component(ctx, authButtons())
		} else {
			hw.Raw(`<p class="text-gray-600 mb-4">Claim it with your account `)
			hw.Text(view.User.Email)
			hw.Raw(`.</p>`)
			hw.Raw(`<button class="w-full px-4 py-3 rounded bg-green-600 text-white font-semibold" ` +
				`hx-post="/checkout/claim" hx-target="#claim-section" hx-swap="outerHTML" ` +
				`hx-disabled-elt="this">Claim Free Ticket</button>`)
		}
		hw.Raw(`</section>`)
		return hw.Err()
	})
}

// ClaimRedirect shows the confirmation and navigates after delay
func ClaimRedirect(message, successURL string, delay time.Duration) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := components.NewWriter(w)
		hw.Raw(`<section id="claim-section" class="bg-white rounded-lg shadow p-6 text-center">`)
		hw.Raw(`<h2 class="text-xl font-semibold text-green-700 mb-2">Ticket claimed</h2><p class="text-gray-600">`)
		hw.Text(message)
		hw.Raw(`</p>`)
		hw.Rawf(`<div hx-get="%s" hx-trigger="load delay:%dms" hx-target="body" hx-push-url="true"></div>`,
			components.URL(successURL), delay.Milliseconds())
		hw.Raw(`</section>`)
		return hw.Err()
	})
}

// PaymentSection renders the card form and the wallet alternatives
func PaymentSection(data CheckoutPageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		v := data.View
		hw := components.NewWriter(w)
		hw.Raw(`<section id="payment-section" class="space-y-6">`)

		switch {
		case v.ClientSecret == "" && v.CanRetry:
			hw.Raw(`<div class="bg-red-50 border border-red-200 text-red-800 p-4 rounded-lg">`)
			hw.Text(v.IntentError)
			hw.Raw(` <button class="underline font-semibold" hx-post="/checkout/intent/retry" ` +
				`hx-target="#payment-section" hx-swap="outerHTML">Try Again</button></div>`)
		case v.ClientSecret == "":
			hw.Raw(`<div class="text-center text-gray-600 py-6" hx-get="/checkout/payment" ` +
				`hx-trigger="load delay:1s" hx-target="#payment-section" hx-swap="outerHTML">Preparing payment...</div>`)
		default:
			hw.Component(ctx, cardForm(data))
		}

		if v.PayPal.Enabled {
			hw.Component(ctx, payPalSection(v.PayPal))
		}
		if v.CashAppURL != "" {
			hw.Component(ctx, cashAppSection(v.CashAppURL, data.CashAppQR))
		}
		hw.Raw(`</section>`)
		return hw.Err()
	})
}

func cardForm(data CheckoutPageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		v := data.View
		hw := components.NewWriter(w)
		hw.Raw(`<div class="bg-white rounded-lg shadow p-6">`)
		hw.Raw(`<h2 class="text-xl font-semibold mb-4">Pay with card</h2>`)
		hw.Rawf(`<div id="card-element" class="border rounded p-3 mb-4" data-client-secret="%s" data-checkout-id="%s" data-publishable-key="%s"></div>`,
			components.Attr(v.ClientSecret), components.Attr(v.CheckoutID), components.Attr(data.PublishableKey))
		hw.Component(ctx, SubmitButton(v))
		hw.Raw(`</div>`)
		hw.Raw(cardScript)
		return hw.Err()
	})
}

// SubmitButton renders the pay button; it polls the form state until the
// form is ready
func SubmitButton(v checkout.View) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := components.NewWriter(w)
		poll := v.FormState == checkout.FormNotReady || v.FormState == checkout.FormSubmitting
		if poll {
			hw.Rawf(`<div id="submit-area" hx-get="/checkout/form/state?client_secret=%s" hx-trigger="every 1s" hx-swap="outerHTML">`,
				url.QueryEscape(v.ClientSecret))
		} else {
			hw.Raw(`<div id="submit-area">`)
		}
		if v.SlowLoadWarning && v.FormState == checkout.FormNotReady {
			hw.Raw(`<p class="text-sm text-amber-700 mb-2">The payment form is taking longer than usual to load. ` +
				`You can keep waiting or refresh the page.</p>`)
		}

		label := "Pay " + v.Checkout.DisplayAmount()
		switch v.FormState {
		case checkout.FormNotReady:
			label = "Loading payment form..."
		case checkout.FormSubmitting:
			label = "Processing..."
		}
		disabled := ""
		if !v.CanSubmit {
			disabled = " disabled"
		}
		hw.Rawf(`<button id="pay-button" type="button" class="w-full px-4 py-3 rounded bg-gray-900 text-white font-semibold disabled:opacity-50"%s>`, disabled)
		hw.Text(label)
		hw.Raw(`</button></div>`)
		return hw.Err()
	})
}

func payPalSection(b checkout.PayPalButton) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := components.NewWriter(w)
		hw.Raw(`<div class="bg-white rounded-lg shadow p-6">`)
		hw.Raw(`<h2 class="text-xl font-semibold mb-4">PayPal</h2>`)
		hw.Rawf(`<div id="paypal-buttons" data-amount="%s" data-currency="%s"></div>`, components.Attr(b.Amount), components.Attr(b.Currency))
		hw.Rawf(`<script src="%s"></script>`, components.URL(b.SDKURL()))
		hw.Raw(`<script>
if (window.paypal) {
  var box = document.getElementById("paypal-buttons");
  paypal.Buttons({
    createOrder: function (data, actions) {
      return actions.order.create({purchase_units: [{amount: {value: box.dataset.amount, currency_code: box.dataset.currency}}]});
    }
  }).render("#paypal-buttons");
}
</script>`)
		hw.Raw(`<button type="button" class="mt-3 text-sm underline" onclick="window.location.reload()">Refresh PayPal</button>`)
		hw.Raw(`</div>`)
		return hw.Err()
	})
}

func cashAppSection(link, qr string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := components.NewWriter(w)
		hw.Raw(`<div class="bg-white rounded-lg shadow p-6">`)
		hw.Raw(`<h2 class="text-xl font-semibold mb-4">Cash App</h2>`)
		hw.Rawf(`<a class="block text-center px-4 py-3 rounded bg-green-500 text-white font-semibold" href="%s" target="_blank" rel="noopener">Pay with Cash App</a>`,
			components.URL(link))
		if qr != "" {
			hw.Raw(`<div class="hidden md:block text-center mt-4"><p class="text-sm text-gray-600 mb-2">On desktop? Scan with your phone.</p>`)
			hw.Rawf(`<img class="mx-auto" alt="Cash App QR code" width="200" height="200" src="%s">`, components.Attr(qr))
			hw.Raw(`</div>`)
		}
		hw.Raw(`<div class="flex gap-2 mt-4"><input id="cashapp-link" class="flex-1 border rounded px-2 py-1 text-sm" readonly value="`)
		hw.Raw(components.Attr(link))
		hw.Raw(`"><button type="button" class="text-sm px-3 py-1 border rounded" ` +
			`onclick="navigator.clipboard.writeText(document.getElementById('cashapp-link').value)">Copy</button></div>`)
		hw.Raw(`</div>`)
		return hw.Err()
	})
}

// cardScript mounts a card element into the current #card-element. The
// document-level handlers are bound once per page and always act on the
// element and secret rendered last.
const cardScript = `<script>
(function () {
  var sg = window.sgCard = window.sgCard || {};
  function current() { return document.getElementById("card-element"); }
  function post(path, values) {
    var mount = current();
    if (!mount) { return; }
    values = values || {};
    values.client_secret = mount.dataset.clientSecret;
    values.checkout = mount.dataset.checkoutId;
    return htmx.ajax("POST", path, {values: values, target: "#submit-area", swap: "outerHTML"});
  }
  function fail(message) {
    htmx.trigger(document.body, "showToast", {toasts: [{title: "Payment failed", description: message, variant: "destructive"}]});
  }
  function mountCard() {
    var mount = current();
    if (!mount || mount.dataset.mounted || !window.Stripe) { return; }
    if (sg.card) { sg.card.destroy(); sg.card = null; }
    if (!sg.stripe || sg.key !== mount.dataset.publishableKey) {
      sg.key = mount.dataset.publishableKey;
      sg.stripe = Stripe(sg.key);
    }
    mount.dataset.mounted = "true";
    var card = sg.stripe.elements().create("card");
    sg.card = card;
    card.on("ready", function () { if (sg.card === card) { post("/checkout/form/element-ready"); } });
    card.on("change", function (e) { if (sg.card === card) { post("/checkout/form/element-change", {complete: e.complete ? "true" : "false"}); } });
    card.mount(mount);
    post("/checkout/form/sdk-loaded");
  }
  if (!sg.bound) {
    sg.bound = true;
    document.body.addEventListener("htmx:beforeSwap", function (e) {
      var target = e.detail.target;
      if (sg.card && e.detail.shouldSwap && target && (target.id === "card-element" || (target.querySelector && target.querySelector("#card-element")))) {
        sg.card.destroy();
        sg.card = null;
      }
    });
    document.body.addEventListener("click", function (e) {
      var button = e.target && e.target.closest ? e.target.closest("#pay-button") : null;
      if (!button || button.disabled || !sg.card) { return; }
      button.disabled = true;
      var card = sg.card;
      sg.stripe.createPaymentMethod({type: "card", card: card}).then(function (res) {
        if (card !== sg.card) { return; }
        if (res.error) {
          fail(res.error.message);
          button.disabled = false;
          return;
        }
        post("/checkout/confirm", {payment_method: res.paymentMethod.id});
      }).catch(function (err) {
        if (card !== sg.card) { return; }
        fail(err && err.message ? err.message : "Could not read the card details.");
        button.disabled = false;
      });
    });
  }
  if (window.Stripe) {
    mountCard();
  } else if (!sg.loading) {
    sg.loading = true;
    var script = document.createElement("script");
    script.src = "https://js.stripe.com/v3/";
    script.onload = mountCard;
    document.head.appendChild(script);
  }
})();
</script>`

// SuccessPageData is rendered on the payment success page
type SuccessPageData struct {
	EventID    int
	EventTitle string
	TicketID   int
	TicketName string
	// Status is the provider's redirect status, empty for synchronous success
	Status string
}

// Failed reports whether the provider redirected back with a failure
func (d SuccessPageData) Failed() bool {
	return d.Status == "failed" || d.Status == "canceled"
}

// PaymentSuccessPage renders the confirmation page
func PaymentSuccessPage(data SuccessPageData) templ.Component {
	title := "Payment successful"
	if data.Failed() {
		title = "Payment not completed"
	}
	return components.Layout(title, nil, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := components.NewWriter(w)
		hw.Raw(`<section class="bg-white rounded-lg shadow p-8 text-center">`)
		if data.Failed() {
			hw.Raw(`<h1 class="text-2xl font-bold text-red-700 mb-2">Payment not completed</h1>`)
			hw.Raw(`<p class="text-gray-600">Your payment was not completed and you have not been charged.</p>`)
		} else {
			hw.Raw(`<h1 class="text-2xl font-bold text-green-700 mb-2">You're going!</h1>`)
			hw.Raw(`<p class="text-gray-600">`)
			switch {
			case data.TicketName != "" && data.EventTitle != "":
				hw.Text(data.TicketName + " for " + data.EventTitle)
			case data.EventTitle != "":
				hw.Text("Your ticket for " + data.EventTitle)
			default:
				hw.Text("Your ticket")
			}
			hw.Raw(` is confirmed. A receipt is on its way to your inbox.</p>`)
			if data.Status == "processing" {
				hw.Raw(`<p class="text-sm text-gray-500 mt-2">Your bank is still processing the payment.</p>`)
			}
		}
		hw.Raw(`</section>`)
		return hw.Err()
	}))
}
