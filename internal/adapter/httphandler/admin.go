package httphandler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/goldmanhw/storefront/internal/core/domain"
	"github.com/goldmanhw/storefront/internal/core/port"
)

const (
	defaultImageFolder = "products"
	multipartMemory    = 1 << 20
)

// AdminConfig used for setup the admin routes. All fields are required.
type AdminConfig struct {
	Store        port.EntryStore
	Lister       port.EntryLister
	Uploader     port.ImageUploader
	Auth         port.Authenticator
	MaxImageSize int64
}

type AdminHandler struct {
	store        port.EntryStore
	lister       port.EntryLister
	uploader     port.ImageUploader
	auth         port.Authenticator
	maxImageSize int64
}

func RegisterAdmin(mux *http.ServeMux, config AdminConfig) {
	const op = "httphandler.RegisterAdmin"

	if config.Store == nil || config.Lister == nil ||
		config.Uploader == nil || config.Auth == nil {
		panic(fmt.Errorf("%s: incomplete config", op)) // develop mistake
	}

	h := AdminHandler{
		store:        config.Store,
		lister:       config.Lister,
		uploader:     config.Uploader,
		auth:         config.Auth,
		maxImageSize: config.MaxImageSize,
	}

	timeout := withTimeout(defaultTimeout)
	bearer := RequireBearer(config.Auth)

	mux.Handle("POST /v1/admin/login",
		chain(http.HandlerFunc(h.Login), timeout, AllowJSON),
	)
	mux.Handle("GET /v1/admin/{collection}",
		chain(http.HandlerFunc(h.ListEntries), timeout, bearer),
	)
	mux.Handle("POST /v1/admin/{collection}",
		chain(http.HandlerFunc(h.CreateEntry), timeout, bearer, AllowJSON),
	)
	mux.Handle("DELETE /v1/admin/{collection}/{id}",
		chain(http.HandlerFunc(h.DeleteEntry), timeout, bearer),
	)
	mux.Handle("POST /v1/admin/images",
		chain(http.HandlerFunc(h.UploadImage), withTimeout(uploadTimeout), bearer),
	)
}

func (h AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	const op = "AdminHandler.Login"
	log := slog.With("op", op)

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON data")
		log.Warn("failed to parse JSON", "err", err)
		return
	}

	token, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		log.Warn("login rejected", "err", err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{Token: token})
	log.Info("admin logged in")
}

// ListEntries lists the stored collection, inactive offers included.
func (h AdminHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	const op = "AdminHandler.ListEntries"
	log := slog.With("op", op)

	c, ok := pathCollection(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown collection")
		return
	}

	es, err := h.lister.ListEntries(r.Context(), c)
	if err != nil {
		log.Error("failed to list entries", "err", err)
		writeDomainError(w, err)
		return
	}

	items := toEntries(es)
	writeJSON(w, http.StatusOK, ListResponse{Items: items, Count: len(items)})
}

func (h AdminHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	const op = "AdminHandler.CreateEntry"
	log := slog.With("op", op)

	c, ok := pathCollection(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown collection")
		return
	}

	var req CreateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON data")
		log.Warn("failed to parse JSON", "err", err)
		return
	}
	if !req.Price.Valid {
		writeError(w, http.StatusBadRequest, "price is required")
		return
	}

	id, err := h.store.CreateEntry(r.Context(), c, req.toDomain())
	if err != nil {
		if statusOf(err) >= http.StatusInternalServerError {
			log.Error("failed to create entry", "err", err)
		}
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, IDResponse{ID: id})
	log.Info("created", "collection", c, "id", id)
}

func (h AdminHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	const op = "AdminHandler.DeleteEntry"
	log := slog.With("op", op)

	c, ok := pathCollection(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown collection")
		return
	}
	id := r.PathValue("id")

	if err := h.store.DeleteEntry(r.Context(), c, id); err != nil {
		if statusOf(err) >= http.StatusInternalServerError {
			log.Error("failed to delete entry", "err", err)
		}
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
	log.Info("deleted", "collection", c, "id", id)
}

// UploadImage accepts a multipart form with the file in "image".
// The target folder comes from ?folder=, "products" by default.
func (h AdminHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	const op = "AdminHandler.UploadImage"
	log := slog.With("op", op)

	if h.maxImageSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxImageSize+multipartMemory)
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeDomainError(w, domain.ErrImageTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, "image file is required")
		log.Warn("failed to read form", "err", err)
		return
	}
	defer file.Close()

	folder := r.URL.Query().Get("folder")
	if folder == "" {
		folder = defaultImageFolder
	}

	url, err := h.uploader.UploadImage(r.Context(), domain.ImageUpload{
		Folder:      folder,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		if statusOf(err) >= http.StatusInternalServerError {
			log.Error("failed to upload image", "err", err)
		}
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, URLResponse{URL: url})
	log.Info("uploaded", "url", url)
}
