package components

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"sg-checkout/internal/models"
)

// Layout is the base HTML document
func Layout(title string, toasts []models.Toast, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := NewWriter(w)
		hw.Raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		hw.Raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		hw.Raw(`<title>`)
		hw.Text(title)
		hw.Raw(` | SG Tickets</title>`)
		hw.Raw(`<script src="https://unpkg.com/htmx.org@1.9.12"></script>`)
		hw.Raw(`<script src="https://cdn.tailwindcss.com"></script>`)
		hw.Raw(`</head><body class="bg-gray-50 min-h-screen">`)
		hw.Raw(`<main class="max-w-2xl mx-auto px-4 py-10">`)
		hw.Component(ctx, body)
		hw.Raw(`</main>`)
		hw.Component(ctx, ToastContainer(toasts))
		hw.Raw(`</body></html>`)
		return hw.Err()
	})
}

// ToastContainer renders queued toasts and listens for showToast events
// raised through HX-Trigger
func ToastContainer(toasts []models.Toast) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := NewWriter(w)
		hw.Raw(`<div id="toasts" class="fixed bottom-4 right-4 space-y-2 z-50">`)
		for _, t := range toasts {
			hw.Component(ctx, Toast(t))
		}
		hw.Raw(`</div>`)
		hw.Raw(`<script>
document.body.addEventListener("htmx:beforeSwap", function (evt) {
  // 409 carries a replacement fragment for a stale payment form
  if (evt.detail.xhr.status === 409) {
    evt.detail.shouldSwap = true;
    evt.detail.isError = false;
  }
});
document.body.addEventListener("showToast", function (evt) {
  var list = (evt.detail && evt.detail.toasts) || [];
  var box = document.getElementById("toasts");
  list.forEach(function (t) {
    var el = document.createElement("div");
    el.className = "toast rounded-lg shadow p-4 " + (t.variant === "destructive" ? "bg-red-600 text-white" : "bg-white text-gray-900");
    var title = document.createElement("p");
    title.className = "font-semibold";
    title.textContent = t.title;
    el.appendChild(title);
    if (t.description) {
      var desc = document.createElement("p");
      desc.className = "text-sm";
      desc.textContent = t.description;
      el.appendChild(desc);
    }
    box.appendChild(el);
    setTimeout(function () { el.remove(); }, 5000);
  });
});
</script>`)
		return hw.Err()
	})
}

// Toast renders one notification
func Toast(t models.Toast) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := NewWriter(w)
		class := "bg-white text-gray-900"
		if t.Variant == "destructive" {
			class = "bg-red-600 text-white"
		}
		hw.Rawf(`<div class="toast rounded-lg shadow p-4 %s" role="status">`, class)
		hw.Raw(`<p class="font-semibold">`)
		hw.Text(t.Title)
		hw.Raw(`</p>`)
		if t.Description != "" {
			hw.Raw(`<p class="text-sm">`)
			hw.Text(t.Description)
			hw.Raw(`</p>`)
		}
		hw.Raw(`</div>`)
		return hw.Err()
	})
}
