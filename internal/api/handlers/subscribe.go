package handlers

import (
	"cone-tracker-service/internal/platform/obs"
	"cone-tracker-service/internal/ports"
	"log"
	"net/http"
	"strings"
)

// MailingListHandler accepts mailing list sign-ups from the landing page.
type MailingListHandler struct {
	Repo ports.MailingListRepository
	// Where the browser is sent afterwards. Defaults to "/".
	RedirectTo string
}

// Subscribe always redirects back; the outcome is only logged so the
// form does not reveal whether an address is already listed.
func (h *MailingListHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	target := h.RedirectTo
	if target == "" {
		target = "/"
	}
	reqID := obs.RequestID(r.Context())

	email := strings.TrimSpace(r.PostFormValue("email"))
	if email == "" {
		log.Printf("req_id=%s subscribe: empty email", reqID)
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}

	ip := clientIP(r)
	accepted, err := h.Repo.Subscribe(r.Context(), email, ip)
	switch {
	case err != nil:
		log.Printf("req_id=%s subscribe failed: ip=%s err=%v", reqID, ip, err)
	case !accepted:
		log.Printf("req_id=%s subscribe rate limited: ip=%s", reqID, ip)
	default:
		log.Printf("req_id=%s subscribe accepted: ip=%s", reqID, ip)
	}

	http.Redirect(w, r, target, http.StatusSeeOther)
}
