package checkout

import (
	"sync"

	"sg-checkout/internal/models"
)

// ToastQueue buffers toasts until the page that shows them drains the queue
type ToastQueue struct {
	mu     sync.Mutex
	toasts []models.Toast
}

// NewToastQueue creates an empty queue
func NewToastQueue() *ToastQueue {
	return &ToastQueue{}
}

// Notify queues a toast
func (q *ToastQueue) Notify(toast models.Toast) {
	if toast.Variant == "" {
		toast.Variant = "default"
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.toasts = append(q.toasts, toast)
}

// Drain returns the queued toasts and empties the queue
func (q *ToastQueue) Drain() []models.Toast {
	q.mu.Lock()
	defer q.mu.Unlock()
	toasts := q.toasts
	q.toasts = nil
	return toasts
}

func errorToast(title, description string) models.Toast {
	return models.Toast{Title: title, Description: description, Variant: "destructive"}
}
