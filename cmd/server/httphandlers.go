package server

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	appkafka "github.com/CoderLord25/ZenSocial/internal/broker"
	"github.com/CoderLord25/ZenSocial/internal/identity"
	"github.com/CoderLord25/ZenSocial/internal/media"
	"github.com/CoderLord25/ZenSocial/internal/middleware"
	"github.com/CoderLord25/ZenSocial/internal/models"
	"github.com/CoderLord25/ZenSocial/internal/store"
	"github.com/gorilla/mux"
)

const (
	maxPostRunes    = 1000
	maxCommentRunes = 500
	maxUploadBytes  = 32 << 20
)

// --- HTTP Handlers ---

// createPostHandler creates a post from multipart fields "content" and "media".
// Returns 201 with the post view model so clients can render it directly.
func (s *Server) createPostHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := s.apiCaller(w, r, "http/posts")
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		logg.Info("http/posts", "Invalid multipart body")
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	content := strings.TrimSpace(r.FormValue("content"))
	if utf8.RuneCountInString(content) > maxPostRunes {
		writeError(w, http.StatusBadRequest, "post content must be at most 1000 characters")
		return
	}

	file, header := formFile(r, "media")
	if file != nil {
		defer file.Close()
		if _, err := media.Extension(header.Filename, media.PostExtensions); err != nil {
			// Disallowed media is dropped, the text part still gets posted.
			logg.Info("http/posts", "Dropping media with disallowed extension")
			file, header = nil, nil
		}
	}

	if content == "" && file == nil {
		writeError(w, http.StatusBadRequest, "post must have content or media")
		return
	}

	mediaURL := ""
	if file != nil {
		url, err := s.uploads.Save(user.ZenID, header.Filename, media.PostExtensions, file)
		if err != nil {
			logg.Error("http/posts", "Failed to store media", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		mediaURL = url
	}

	post, err := s.store.CreatePost(r.Context(), user.ID, content, mediaURL)
	if errors.Is(err, store.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		logg.Error("http/posts", "Failed to create post", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	logg.Info("http/posts", "Post created successfully by zenid="+user.ZenID)
	writeJSON(w, http.StatusCreated, post)
}

// likePostHandler toggles the caller's like on a post.
// Returns {"status": "liked"|"unliked"}.
func (s *Server) likePostHandler(w http.ResponseWriter, r *http.Request) {
	s.toggle(w, r, "http/like", s.store.ToggleLike, models.Liked, appkafka.PostLiked)
}

// repostPostHandler toggles the caller's repost of a post.
// Returns {"status": "reposted"|"unreposted"}.
func (s *Server) repostPostHandler(w http.ResponseWriter, r *http.Request) {
	s.toggle(w, r, "http/repost", s.store.ToggleRepost, models.Reposted, appkafka.PostReposted)
}

type toggleFunc func(ctx context.Context, postID, userID int64) (models.ToggleState, error)

func (s *Server) toggle(w http.ResponseWriter, r *http.Request, module string, fn toggleFunc, on models.ToggleState, event appkafka.EventType) {
	user, ok := s.apiCaller(w, r, module)
	if !ok {
		return
	}
	postID, ok := postIDFromPath(w, r)
	if !ok {
		return
	}

	state, err := fn(r.Context(), postID, user.ID)
	if errors.Is(err, store.ErrPostNotFound) {
		writeError(w, http.StatusNotFound, "post not found")
		return
	}
	if err != nil {
		logg.Error(module, "Failed to toggle interaction", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if state == on {
		s.publish(r.Context(), event, postID, user)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(state)})
}

// commentPostHandler adds a comment to a post.
// Expects JSON body: {"content": "..."}
// Returns {"username", "content"} with 201.
func (s *Server) commentPostHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := s.apiCaller(w, r, "http/comment")
	if !ok {
		return
	}
	postID, ok := postIDFromPath(w, r)
	if !ok {
		return
	}

	var body struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		logg.Info("http/comment", "Invalid request body")
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	defer r.Body.Close()

	content := strings.TrimSpace(body.Content)
	if content == "" {
		writeError(w, http.StatusBadRequest, "comment cannot be empty")
		return
	}
	if utf8.RuneCountInString(content) > maxCommentRunes {
		writeError(w, http.StatusBadRequest, "comment must be at most 500 characters")
		return
	}

	comment, err := s.store.AddComment(r.Context(), postID, user.ID, content)
	if errors.Is(err, store.ErrPostNotFound) {
		writeError(w, http.StatusNotFound, "post not found")
		return
	}
	if err != nil {
		logg.Error("http/comment", "Failed to add comment", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.publish(r.Context(), appkafka.PostCommented, postID, user)
	writeJSON(w, http.StatusCreated, map[string]string{
		"username": comment.Username,
		"content":  comment.Content,
	})
}

// editProfileHandler updates display name, bio, avatar and cover from a
// multipart form. Empty fields keep their stored values.
func (s *Server) editProfileHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := s.apiCaller(w, r, "http/profile")
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var upd models.ProfileUpdate
	if v := strings.TrimSpace(r.FormValue("username")); v != "" {
		if utf8.RuneCountInString(v) > 50 {
			writeError(w, http.StatusBadRequest, "username must be 1-50 characters")
			return
		}
		upd.Username = &v
	}
	if v := strings.TrimSpace(r.FormValue("bio")); v != "" {
		upd.Bio = &v
	}

	for field, target := range map[string]**string{"avatar": &upd.Avatar, "cover": &upd.Cover} {
		file, header := formFile(r, field)
		if file == nil {
			continue
		}
		url, err := s.uploads.Save(user.ZenID, header.Filename, media.ImageExtensions, file)
		file.Close()
		if errors.Is(err, media.ErrExtensionNotAllowed) {
			logg.Info("http/profile", "Dropping "+field+" with disallowed extension")
			continue
		}
		if err != nil {
			logg.Error("http/profile", "Failed to store "+field, err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		*target = &url
	}

	if err := s.store.UpdateProfile(r.Context(), user.ID, upd); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		logg.Error("http/profile", "Failed to update profile", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

// apiCaller resolves the authenticated user or writes the error response.
func (s *Server) apiCaller(w http.ResponseWriter, r *http.Request, module string) (*models.User, bool) {
	a, ok := middleware.AuthFromContext(r.Context())
	if !ok {
		logg.Info(module, "Unauthorized request")
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}

	user, err := s.store.ResolveAccount(r.Context(), identity.ZenID(a.ZenID))
	if errors.Is(err, store.ErrUserNotFound) {
		logg.Info(module, "Session refers to unknown zenid="+a.ZenID)
		writeError(w, http.StatusNotFound, "user not found")
		return nil, false
	}
	if err != nil {
		logg.Error(module, "Failed to resolve caller", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	return user, true
}

// publish sends an interaction event after commit. Failures are logged only:
// the interaction itself already succeeded.
func (s *Server) publish(ctx context.Context, typ appkafka.EventType, postID int64, actor *models.User) {
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		logg.Error("events", "Failed to load post for event", err)
		return
	}

	msg, err := appkafka.InteractionEvent{
		Type:        typ,
		PostID:      postID,
		PostOwnerID: post.UserID,
		ActorID:     actor.ID,
		ActorZenID:  actor.ZenID,
		Created:     time.Now().UTC(),
	}.Encode()
	if err != nil {
		logg.Error("events", "Failed to encode event", err)
		return
	}

	if err := s.kafkaWriter.WriteMessages(msg); err != nil {
		logg.Error("events", "Failed to write Kafka message", err)
	}
}

func postIDFromPath(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusNotFound, "post not found")
		return 0, false
	}
	return id, true
}

// formFile returns the uploaded file for field, or nil when absent.
func formFile(r *http.Request, field string) (multipart.File, *multipart.FileHeader) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, nil
	}
	if header.Filename == "" || header.Size == 0 {
		file.Close()
		return nil, nil
	}
	return file, header
}

// readField reads a single string field from a JSON or form body.
func readField(r *http.Request, name string) (string, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return "", err
		}
		defer r.Body.Close()
		v, _ := body[name].(string)
		return v, nil
	}
	return r.FormValue(name), nil
}

func wantsJSON(r *http.Request) bool {
	return r.Header.Get("X-Requested-With") == "XMLHttpRequest" ||
		strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
