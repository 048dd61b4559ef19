package httphandler

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/goldmanhw/storefront/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testToken = "good-token"

type adminFixture struct {
	mux      *http.ServeMux
	store    *storeMock
	uploader *uploaderMock
	auth     *authMock
}

func newAdminFixture(t *testing.T, maxImageSize int64) adminFixture {
	t.Helper()
	f := adminFixture{
		mux:      http.NewServeMux(),
		store:    new(storeMock),
		uploader: new(uploaderMock),
		auth:     new(authMock),
	}
	f.auth.On("Verify", testToken).Return(nil).Maybe()
	f.auth.On("Verify", mock.Anything).Return(domain.ErrUnauthorized).Maybe()

	RegisterAdmin(f.mux, AdminConfig{
		Store:        f.store,
		Lister:       f.store,
		Uploader:     f.uploader,
		Auth:         f.auth,
		MaxImageSize: maxImageSize,
	})
	t.Cleanup(func() {
		f.store.AssertExpectations(t)
		f.uploader.AssertExpectations(t)
	})
	return f
}

func (f adminFixture) do(
	t *testing.T, method, target, contentType string, body []byte, token string,
) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func TestLogin(t *testing.T) {
	f := newAdminFixture(t, 0)
	f.auth.On("Login", "admin@shop.test", "s3cret").Return("jwt", nil).Once()
	f.auth.On("Login", "admin@shop.test", "wrong").
		Return("", domain.ErrUnauthorized).Once()

	body := []byte(`{"email":"admin@shop.test","password":"s3cret"}`)
	rec := f.do(t, http.MethodPost, "/v1/admin/login", "application/json", body, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "jwt", resp.Token)

	body = []byte(`{"email":"admin@shop.test","password":"wrong"}`)
	rec = f.do(t, http.MethodPost, "/v1/admin/login", "application/json", body, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/admin/login", "text/plain", body, "")
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestAdminRequiresToken(t *testing.T) {
	f := newAdminFixture(t, 0)

	rec := f.do(t, http.MethodGet, "/v1/admin/products", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/admin/products", "", nil, "forged")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminListEntries(t *testing.T) {
	f := newAdminFixture(t, 0)
	inactive := offersSnapshot()
	inactive[0].Active = false
	f.store.On("ListEntries", domain.Offers).Return(inactive, nil).Once()

	rec := f.do(t, http.MethodGet, "/v1/admin/offers", "", nil, testToken)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.False(t, resp.Items[0].Active)
	assert.Empty(t, resp.State)

	rec = f.do(t, http.MethodGet, "/v1/admin/tools", "", nil, testToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminCreateEntry(t *testing.T) {
	f := newAdminFixture(t, 0)
	f.store.On("CreateEntry", domain.Offers, mock.MatchedBy(func(v domain.EntryFields) bool {
		return v.Name == "Saw" &&
			v.Price.Equal(decimal.RequireFromString("75.5")) &&
			v.OriginalPrice.Valid &&
			v.OriginalPrice.Decimal.Equal(decimal.NewFromInt(100)) &&
			v.Stock != nil && *v.Stock == 4
	})).Return("new-id", nil).Once()
	f.store.On("CreateEntry", domain.Products, mock.Anything).
		Return("", errors.Join(
			domain.ErrInvalidEntry, errors.New("name is required"),
		)).Once()

	body := []byte(`{"name":"Saw","price":75.5,"originalPrice":"100","stock":4}`)
	rec := f.do(t, http.MethodPost, "/v1/admin/offers", "application/json", body, testToken)
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp IDResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "new-id", resp.ID)

	body = []byte(`{"price":1}`)
	rec = f.do(t, http.MethodPost, "/v1/admin/products", "application/json", body, testToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "name is required")

	body = []byte(`{"name":"No price"}`)
	rec = f.do(t, http.MethodPost, "/v1/admin/products", "application/json", body, testToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "price is required")

	rec = f.do(t, http.MethodPost, "/v1/admin/products", "application/json", []byte("{"), testToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminDeleteEntry(t *testing.T) {
	f := newAdminFixture(t, 0)
	f.store.On("DeleteEntry", domain.Products, "p1").Return(nil).Once()
	f.store.On("DeleteEntry", domain.Products, "p2").
		Return(errors.New("broker down")).Once()

	rec := f.do(t, http.MethodDelete, "/v1/admin/products/p1", "", nil, testToken)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodDelete, "/v1/admin/products/p2", "", nil, testToken)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "broker down")
}

func multipartImage(
	t *testing.T, field, contentType string, data []byte,
) (string, []byte) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="photo.png"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return w.FormDataContentType(), buf.Bytes()
}

func TestAdminUploadImage(t *testing.T) {
	t.Run("Uploaded", func(t *testing.T) {
		f := newAdminFixture(t, 1024)
		f.uploader.On("UploadImage", "offers", "image/png", []byte("png-bytes")).
			Return("https://cdn.shop.test/offers/x.jpg", nil).Once()

		ct, body := multipartImage(t, "image", "image/png", []byte("png-bytes"))
		rec := f.do(t, http.MethodPost, "/v1/admin/images?folder=offers", ct, body, testToken)
		require.Equal(t, http.StatusCreated, rec.Code)

		var resp URLResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "https://cdn.shop.test/offers/x.jpg", resp.URL)
	})

	t.Run("DefaultFolder", func(t *testing.T) {
		f := newAdminFixture(t, 1024)
		f.uploader.On("UploadImage", "products", "image/jpeg", []byte("jpg")).
			Return("u", nil).Once()

		ct, body := multipartImage(t, "image", "image/jpeg", []byte("jpg"))
		rec := f.do(t, http.MethodPost, "/v1/admin/images", ct, body, testToken)
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("Rejected", func(t *testing.T) {
		f := newAdminFixture(t, 1024)
		f.uploader.On("UploadImage", "products", "text/plain", []byte("txt")).
			Return("", domain.ErrInvalidImage).Once()

		ct, body := multipartImage(t, "image", "text/plain", []byte("txt"))
		rec := f.do(t, http.MethodPost, "/v1/admin/images", ct, body, testToken)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("MissingFile", func(t *testing.T) {
		f := newAdminFixture(t, 1024)
		ct, body := multipartImage(t, "file", "image/png", []byte("png"))
		rec := f.do(t, http.MethodPost, "/v1/admin/images", ct, body, testToken)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("TooLarge", func(t *testing.T) {
		f := newAdminFixture(t, 16)
		big := []byte(strings.Repeat("x", 2<<20))
		ct, body := multipartImage(t, "image", "image/png", big)
		rec := f.do(t, http.MethodPost, "/v1/admin/images", ct, body, testToken)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}
