package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/CoderLord25/ZenSocial/internal/earnings"
	"github.com/CoderLord25/ZenSocial/internal/identity"
	"github.com/CoderLord25/ZenSocial/internal/middleware"
	"github.com/CoderLord25/ZenSocial/internal/models"
	"github.com/CoderLord25/ZenSocial/internal/store"
	"github.com/CoderLord25/ZenSocial/internal/web"
)

const (
	homeFeedLimit     = 50
	notificationLimit = 50
)

// --- Page handlers ---

func (s *Server) homeHandler(w http.ResponseWriter, r *http.Request) {
	me, ok := s.pageCaller(w, r)
	if !ok {
		return
	}

	posts, err := s.store.ListRecentPosts(r.Context(), homeFeedLimit)
	if err != nil {
		logg.Error("http/home", "Failed to load feed", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.render(w, r, http.StatusOK, "index", web.Page{Title: "Home", Me: me, Posts: posts})
}

// profileHandler shows ?user=<zenid|wallet>, or the caller's own profile.
// Unknown or malformed identifiers redirect home.
func (s *Server) profileHandler(w http.ResponseWriter, r *http.Request) {
	me, ok := s.pageCaller(w, r)
	if !ok {
		return
	}

	user := me
	if q := strings.TrimSpace(r.URL.Query().Get("user")); q != "" {
		found, err := s.lookupProfile(r, q)
		if errors.Is(err, store.ErrUserNotFound) || errors.Is(err, identity.ErrInvalidAddress) {
			logg.Info("http/profile", "Profile not found, redirecting")
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		if err != nil {
			logg.Error("http/profile", "Failed to resolve profile", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		user = found
	}

	posts, err := s.store.ListPostsByUser(r.Context(), user.ID)
	if err != nil {
		logg.Error("http/profile", "Failed to load posts", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.render(w, r, http.StatusOK, "profile", web.Page{
		Title: user.DisplayName(),
		Me:    me,
		User:  user,
		Own:   user.ID == me.ID,
		Posts: posts,
	})
}

// lookupProfile resolves q as a ZenID first, then as a wallet.
func (s *Server) lookupProfile(r *http.Request, q string) (*models.User, error) {
	zenID, err := identity.ParseZenID(q)
	if err != nil {
		return nil, err
	}
	user, err := s.store.ResolveAccount(r.Context(), zenID)
	if !errors.Is(err, store.ErrUserNotFound) {
		return user, err
	}
	wallet, err := identity.ParseWallet(q)
	if err != nil {
		return nil, err
	}
	return s.store.ResolveAccount(r.Context(), wallet)
}

// earnHandler refreshes the caller's per-post earnings snapshot and shows
// the totals.
func (s *Server) earnHandler(w http.ResponseWriter, r *http.Request) {
	me, ok := s.pageCaller(w, r)
	if !ok {
		return
	}

	totals, err := s.store.EngagementTotals(r.Context(), me.ID)
	if err != nil {
		logg.Error("http/earn", "Failed to load totals", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	records, err := s.store.SnapshotEarnings(r.Context(), me.ID)
	if err != nil {
		logg.Error("http/earn", "Failed to snapshot earnings", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.render(w, r, http.StatusOK, "earn", web.Page{
		Title:   "Earn",
		Me:      me,
		Totals:  totals,
		Amount:  earnings.Estimate(totals).String(),
		Records: records,
	})
}

func (s *Server) messagesHandler(w http.ResponseWriter, r *http.Request) {
	me, ok := s.pageCaller(w, r)
	if !ok {
		return
	}
	s.render(w, r, http.StatusOK, "messages", web.Page{Title: "Messages", Me: me})
}

// notificationsHandler lists the newest notifications and marks them read.
func (s *Server) notificationsHandler(w http.ResponseWriter, r *http.Request) {
	me, ok := s.pageCaller(w, r)
	if !ok {
		return
	}

	list, err := s.store.ListNotifications(r.Context(), me.ID, notificationLimit)
	if err != nil {
		logg.Error("http/notifications", "Failed to list notifications", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if err := s.store.MarkNotificationsRead(r.Context(), me.ID); err != nil {
		logg.Error("http/notifications", "Failed to mark notifications read", err)
	}
	s.render(w, r, http.StatusOK, "notifications", web.Page{Title: "Notifications", Me: me, Notifications: list})
}

// --- Helpers ---

// pageCaller resolves the session user for browser pages. A session whose
// account no longer exists is dropped and sent back to /login.
func (s *Server) pageCaller(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	a, ok := middleware.AuthFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusFound)
		return nil, false
	}

	user, err := s.store.ResolveAccount(r.Context(), identity.ZenID(a.ZenID))
	if errors.Is(err, store.ErrUserNotFound) {
		s.auth.ClearSessionCookie(w)
		http.Redirect(w, r, "/login", http.StatusFound)
		return nil, false
	}
	if err != nil {
		logg.Error("http/page", "Failed to resolve caller", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return nil, false
	}
	return user, true
}

// render writes a page with status, falling back to a plain 500 when the
// template fails.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page string, data web.Page) {
	var buf strings.Builder
	if err := s.pages.Render(&buf, page, data); err != nil {
		logg.Error("http/render", "Failed to render "+page+" for "+r.URL.Path, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(buf.String()))
}
