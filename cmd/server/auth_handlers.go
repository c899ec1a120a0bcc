package server

import (
	"errors"
	"net/http"

	"github.com/CoderLord25/ZenSocial/internal/identity"
	"github.com/CoderLord25/ZenSocial/internal/middleware"
	"github.com/CoderLord25/ZenSocial/internal/models"
	"github.com/CoderLord25/ZenSocial/internal/store"
	"github.com/CoderLord25/ZenSocial/internal/web"
)

const mintAttempts = 5

// --- Identity handlers ---

func (s *Server) loginPageHandler(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "login", web.Page{Title: "Log in"})
}

// loginHandler logs in with an existing ZenID. Unknown ZenIDs are never
// provisioned here; the caller has to mint first.
func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	raw := r.FormValue("zenid")

	zenID, err := identity.ParseZenID(raw)
	if err != nil {
		logg.Info("http/login", "Malformed ZenID submitted")
		s.render(w, r, http.StatusBadRequest, "login", web.Page{Title: "Log in", ZenID: raw, Error: "That does not look like a ZenID."})
		return
	}

	user, err := s.store.ResolveAccount(r.Context(), zenID)
	if errors.Is(err, store.ErrUserNotFound) {
		logg.Info("http/login", "Login attempt for unknown zenid="+zenID.String())
		s.render(w, r, http.StatusUnauthorized, "login", web.Page{Title: "Log in", ZenID: raw, Error: "ZenID not found. Mint one first."})
		return
	}
	if err != nil {
		logg.Error("http/login", "Failed to resolve account", err)
		s.render(w, r, http.StatusInternalServerError, "login", web.Page{Title: "Log in", ZenID: raw, Error: "Something went wrong, please try again."})
		return
	}

	if _, err := s.startSession(w, r, user); err != nil {
		s.render(w, r, http.StatusInternalServerError, "login", web.Page{Title: "Log in", ZenID: raw, Error: "Something went wrong, please try again."})
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) mintPageHandler(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "mint", web.Page{Title: "Mint"})
}

// mintHandler creates a fresh ZenID account and logs it in.
// Returns JSON {"zenid", "token"} for API clients, otherwise redirects home.
func (s *Server) mintHandler(w http.ResponseWriter, r *http.Request) {
	var user *models.User
	for attempt := 0; attempt < mintAttempts && user == nil; attempt++ {
		zenID, err := identity.NewZenID()
		if err != nil {
			logg.Error("http/mint", "Failed to generate ZenID", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		user, err = s.store.CreateUser(r.Context(), zenID)
		if errors.Is(err, store.ErrUserExists) {
			logg.Info("http/mint", "Minted ZenID collided, retrying")
			continue
		}
		if err != nil {
			logg.Error("http/mint", "Failed to create user", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
	}
	if user == nil {
		logg.Error("http/mint", "Exhausted mint attempts", store.ErrUserExists)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if _, err := s.startSession(w, r, user); err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	logg.Info("http/mint", "Minted zenid="+user.ZenID)

	if !wantsJSON(r) {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	token, err := s.auth.IssueToken(user.ZenID, tokenTTL)
	if err != nil {
		logg.Error("http/mint", "Failed to sign token", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"zenid": user.ZenID, "token": token})
}

// registerZenIDHandler stores a ZenID minted on the client and logs it in.
// Expects {"zenid": "0x..."} as JSON or form data.
func (s *Server) registerZenIDHandler(w http.ResponseWriter, r *http.Request) {
	raw, err := readField(r, "zenid")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid request body"})
		return
	}

	zenID, err := identity.ParseZenID(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
		return
	}

	user, err := s.store.CreateUser(r.Context(), zenID)
	if errors.Is(err, store.ErrUserExists) {
		user, err = s.store.ResolveAccount(r.Context(), zenID)
	}
	if err != nil {
		logg.Error("http/register_zenid", "Failed to register ZenID", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "internal error"})
		return
	}

	if _, err := s.startSession(w, r, user); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// walletLoginHandler logs in with a wallet, provisioning an account for
// wallets seen for the first time.
// Expects {"wallet": "0x..."} as JSON or form data.
func (s *Server) walletLoginHandler(w http.ResponseWriter, r *http.Request) {
	raw, err := readField(r, "wallet")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid request body"})
		return
	}

	wallet, err := identity.ParseWallet(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
		return
	}

	user, created, err := s.store.EnsureWalletUser(r.Context(), wallet)
	if err != nil {
		logg.Error("http/wallet_login", "Failed to resolve wallet account", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "internal error"})
		return
	}
	if created {
		logg.Info("http/wallet_login", "Provisioned account for wallet="+wallet.String())
	}

	if _, err := s.startSession(w, r, user); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	if a, ok := middleware.AuthFromContext(r.Context()); ok && a.SessionToken != "" {
		if err := s.store.DeleteSession(r.Context(), a.SessionToken); err != nil {
			logg.Error("http/logout", "Failed to delete session", err)
		}
	}
	s.auth.ClearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

// startSession creates a server-side session for user and sets the cookie.
func (s *Server) startSession(w http.ResponseWriter, r *http.Request, user *models.User) (*models.Session, error) {
	sess, err := s.store.CreateSession(r.Context(), user.ZenID, s.sessionTTL)
	if err != nil {
		logg.Error("http/session", "Failed to create session", err)
		return nil, err
	}
	s.auth.SetSessionCookie(w, sess)
	return sess, nil
}
