package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkceria/ceria/core/news"
)

func newsSlugs(items []news.News) []string {
	slugs := make([]string, 0, len(items))
	for _, n := range items {
		slugs = append(slugs, n.Slug)
	}
	return slugs
}

func Test_newsAPI(t *testing.T) {
	f := setup(t)
	adminToken := getToken(t, f, f.admin)

	post := func(nn news.NewNews) news.News {
		t.Helper()
		rec := f.do(http.MethodPost, "/v1/news", adminToken, marshalObj(t, nn))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var n news.News
		decode(t, rec, &n)
		return n
	}
	kartini := post(news.NewNews{Title: "Hari Kartini 2024!", Body: "Anak-anak memakai kebaya.", IsPublished: true})
	again := post(news.NewNews{Title: "Hari Kartini 2024", Body: "Foto kegiatan.", IsPublished: true})
	draft := post(news.NewNews{Title: "Pentas Seni", Body: "Segera hadir."})

	assert.Equal(t, "hari-kartini-2024", kartini.Slug)
	assert.Equal(t, "hari-kartini-2024-2", again.Slug)
	assert.True(t, kartini.PublishedAt.Valid)
	assert.Equal(t, f.admin.ID, kartini.AuthorID.String)
	assert.False(t, draft.IsPublished)
	assert.False(t, draft.PublishedAt.Valid)

	list := func(path, token string) []string {
		t.Helper()
		rec := f.do(http.MethodGet, path, token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var items []news.News
		decode(t, rec, &items)
		return newsSlugs(items)
	}

	t.Run("public list hides drafts", func(t *testing.T) {
		assert.ElementsMatch(t, []string{kartini.Slug, again.Slug}, list("/v1/news", ""))
		assert.ElementsMatch(t, []string{kartini.Slug, again.Slug}, list("/v1/news?search=KARTINI", ""))
		assert.Empty(t, list("/v1/news?search=pentas", ""))
		assert.Len(t, list("/v1/news?limit=1", ""), 1)
	})

	t.Run("admin list includes drafts", func(t *testing.T) {
		assert.ElementsMatch(t, []string{kartini.Slug, again.Slug, draft.Slug}, list("/v1/admin/news", adminToken))
	})

	t.Run("publish draft", func(t *testing.T) {
		rec := f.do(http.MethodPut, "/v1/news/"+draft.Slug, adminToken, marshalObj(t, news.NewNews{
			Title: "Pentas Seni Akhir Tahun", Body: "Sabtu, 14 Juni.", IsPublished: true,
		}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var n news.News
		decode(t, rec, &n)
		assert.Equal(t, "pentas-seni-akhir-tahun", n.Slug)
		assert.True(t, n.IsPublished)
		assert.True(t, n.PublishedAt.Valid)

		rec = f.do(http.MethodGet, "/v1/news/pentas-seni-akhir-tahun", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	runHTTPTests(t, f, []httpTest{
		{name: "public detail", path: "/v1/news/" + kartini.Slug, wantCode: http.StatusOK},
		{name: "old slug", path: "/v1/admin/news/" + draft.Slug, token: adminToken, wantCode: http.StatusNotFound},
		{
			name: "anonymous create", method: http.MethodPost, path: "/v1/news",
			body:     marshalObj(t, news.NewNews{Title: "x", Body: "y"}),
			wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken),
		},
		{
			name: "teachers cannot create", method: http.MethodPost, path: "/v1/news", token: getToken(t, f, f.teacher),
			body: marshalObj(t, news.NewNews{Title: "x", Body: "y"}), wantCode: http.StatusForbidden,
		},
		{
			name: "missing fields", method: http.MethodPost, path: "/v1/news", token: adminToken, body: []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"title": "this field is required", "body": "this field is required"}),
		},
		{name: "delete", method: http.MethodDelete, path: "/v1/news/" + again.Slug, token: adminToken, wantCode: http.StatusNoContent},
		{name: "deleted", path: "/v1/news/" + again.Slug, wantCode: http.StatusNotFound},
	})
}

func Test_newsAPI_drafts(t *testing.T) {
	f := setup(t)
	adminToken := getToken(t, f, f.admin)

	rec := f.do(http.MethodPost, "/v1/news", adminToken, marshalObj(t, news.NewNews{Title: "Draf", Body: "..."}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	runHTTPTests(t, f, []httpTest{
		{name: "public", path: "/v1/news/draf", wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: news.ErrNotFound.Error()})},
		{name: "parent", path: "/v1/news/draf", token: getToken(t, f, f.parent), wantCode: http.StatusNotFound},
		{name: "admin", path: "/v1/admin/news/draf", token: adminToken, wantCode: http.StatusOK},
		{name: "admin routes need admin", path: "/v1/admin/news", token: getToken(t, f, f.teacher), wantCode: http.StatusForbidden},
	})
}
