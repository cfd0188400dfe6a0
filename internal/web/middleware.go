package web

import (
	"context"
	"net/http"
)

type webContextKey string

const adminKey webContextKey = "admin"

// AdminMode marks requests carrying ?admin=true. The flag only switches
// the editing UI on; it is not access control.
func AdminMode(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		admin := r.URL.Query().Get("admin") == "true"
		ctx := context.WithValue(r.Context(), adminKey, admin)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IsAdmin reports whether the request is in admin mode.
func IsAdmin(ctx context.Context) bool {
	admin, _ := ctx.Value(adminKey).(bool)
	return admin
}

// pageData builds the common page fields, including a flash message passed
// through the ok or err query parameter after a form post.
func pageData(r *http.Request, title string) PageData {
	q := r.URL.Query()
	return PageData{
		Title:   title,
		Admin:   IsAdmin(r.Context()),
		Success: flashMessages[q.Get("ok")],
		Error:   flashMessages[q.Get("err")],
	}
}

var flashMessages = map[string]string{
	"approved": "Item approved.",
	"rejected": "Item rejected.",
	"deleted":  "Item deleted.",
	"notfound": "That item is no longer in the queue. The list has been refreshed.",
	"failed":   "Something went wrong. Please try again.",
	"badinput": "Please check the form and try again.",
	"updated":  "Item updated.",
	"saved":    "Settings saved.",
	"signed":   "Thank you for signing! Your signature will appear once it is approved.",
	"shared":   "Thank you for sharing! Your memory will appear once it is approved.",
}
