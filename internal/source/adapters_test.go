// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paperfetch/internal/ident"
	"github.com/pdiddy/paperfetch/pkg/types"
)

const sampleCrossRef = `{
  "status": "ok",
  "message": {
    "DOI": "10.1038/nature12373",
    "URL": "https://doi.org/10.1038/nature12373",
    "title": ["Nanometre-scale thermometry in a living cell"],
    "container-title": ["Nature"],
    "abstract": "<jats:p>Sensitive probing of temperature.</jats:p>",
    "author": [
      {"given": "G.", "family": "Kucsko"},
      {"given": "P. C.", "family": "Maurer"}
    ],
    "issued": {"date-parts": [[2013, 7, 31]]},
    "created": {"date-parts": [[2013, 8, 1]]},
    "link": [{"URL": "https://www.nature.com/articles/nature12373.pdf", "content-type": "application/pdf"}]
  }
}`

func TestCrossref_ResolveDOI(t *testing.T) {
	var gotPath, gotQuery string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		w.Write([]byte(sampleCrossRef))
	})
	c := &Crossref{base: testBase("crossref", srv, types.SourceConfig{})}

	m, err := c.Resolve(context.Background(), ident.DOI("10.1038/nature12373"))
	require.NoError(t, err)

	assert.Equal(t, "/works/10.1038/nature12373", gotPath)
	assert.Contains(t, gotQuery, "mailto=test%40example.com")
	assert.Equal(t, "Nanometre-scale thermometry in a living cell", m.Title)
	assert.Equal(t, "Kucsko", m.FirstAuthor)
	assert.Equal(t, []string{"G. Kucsko", "P. C. Maurer"}, m.Authors)
	assert.Equal(t, 2013, m.Year)
	assert.Equal(t, "Nature", m.Venue)
	assert.Equal(t, "Sensitive probing of temperature.", m.Abstract)
	assert.Equal(t, "https://www.nature.com/articles/nature12373.pdf", m.PDFURL)
	assert.Equal(t, "crossref", m.Source)
}

func TestCrossref_EscapesDOIPath(t *testing.T) {
	var gotPath, gotQuery string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		w.Write([]byte(sampleCrossRef))
	})
	c := &Crossref{base: testBase("crossref", srv, types.SourceConfig{})}

	_, err := c.Resolve(context.Background(), ident.DOI("10.1000/a#b?c%d"))
	require.NoError(t, err)
	assert.Equal(t, "/works/10.1000/a#b?c%d", gotPath)
	assert.Equal(t, "mailto=test%40example.com", gotQuery)
}

func TestEscapeDOI(t *testing.T) {
	assert.Equal(t, "10.1038/nature12373", escapeDOI("10.1038/nature12373"))
	assert.Equal(t, "10.1000/a%23b%3Fc", escapeDOI("10.1000/a#b?c"))
	assert.Equal(t, "10.1002/%28SICI%291097-4571%28199806%2949:8%3C693::AID-ASI3%3E3.0.CO%3B2-0",
		escapeDOI("10.1002/(SICI)1097-4571(199806)49:8<693::AID-ASI3>3.0.CO;2-0"))
}

func TestCrossref_ResolveTitleAndArxiv(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/works" && r.URL.Query().Get("query.bibliographic") != "":
			w.Write([]byte(`{"message":{"items":[{"DOI":"10.1/abc","title":["Found It"],"author":[{"name":"Consortium"}]}]}}`))
		case r.URL.Path == "/works/10.48550/arXiv.2301.07041":
			w.Write([]byte(`{"message":{"DOI":"10.48550/arXiv.2301.07041","title":["Preprint"]}}`))
		default:
			http.NotFound(w, r)
		}
	})
	c := &Crossref{base: testBase("crossref", srv, types.SourceConfig{})}
	ctx := context.Background()

	m, err := c.Resolve(ctx, ident.Title("found it"))
	require.NoError(t, err)
	assert.Equal(t, "Found It", m.Title)
	assert.Equal(t, "Consortium", m.FirstAuthor)

	m, err = c.Resolve(ctx, ident.Arxiv("2301.07041v3"))
	require.NoError(t, err)
	assert.Equal(t, "2301.07041", m.ArxivID)

	_, err = c.Resolve(ctx, ident.DOI("10.9999/missing"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.Resolve(ctx, ident.URL("https://example.com/x.pdf"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenAlex_ResolveAndFetch(t *testing.T) {
	var srvURL string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/works/https://doi.org/10.1145/1234567.1234568"):
			w.Write([]byte(`{
  "id": "https://openalex.org/W1",
  "doi": "https://doi.org/10.1145/1234567.1234568",
  "display_name": "Some title",
  "publication_year": 2020,
  "authorships": [{"author": {"display_name": "Ada Lovelace"}}],
  "abstract_inverted_index": {"Hello": [0], "world": [1]},
  "primary_location": {"landing_page_url": "https://example.com/landing", "source": {"display_name": "CACM"}},
  "best_oa_location": {"pdf_url": "` + srvURL + `/oa.pdf"},
  "open_access": {"is_oa": true}
}`))
		case strings.HasPrefix(r.URL.Path, "/works/https://doi.org/10.1145/closed"):
			w.Write([]byte(`{"id": "https://openalex.org/W2", "display_name": "Closed", "best_oa_location": null}`))
		case r.URL.Path == "/works":
			w.Write([]byte(`{"results": [{"id": "https://openalex.org/W1", "display_name": "Some Title!", "best_oa_location": {"pdf_url": "` + srvURL + `/oa.pdf"}}]}`))
		case r.URL.Path == "/oa.pdf":
			w.Write(fakePDF)
		default:
			http.NotFound(w, r)
		}
	})
	srvURL = srv.URL
	o := &OpenAlex{base: testBase("openalex", srv, types.SourceConfig{})}
	ctx := context.Background()

	m, err := o.Resolve(ctx, ident.DOI("10.1145/1234567.1234568"))
	require.NoError(t, err)
	assert.Equal(t, "Some title", m.Title)
	assert.Equal(t, "10.1145/1234567.1234568", m.DOI)
	assert.Equal(t, "Lovelace", m.FirstAuthor)
	assert.Equal(t, "Hello world", m.Abstract)
	assert.Equal(t, "CACM", m.Venue)
	assert.True(t, m.IsOpenAccess)

	got, err := o.Fetch(ctx, FetchRequest{Metadata: m, Method: MethodID})
	require.NoError(t, err)
	assert.Equal(t, fakePDF, got)

	got, err = o.Fetch(ctx, FetchRequest{Metadata: types.PaperMetadata{Title: "some title"}, Method: MethodTitle})
	require.NoError(t, err)
	assert.Equal(t, fakePDF, got)

	_, err = o.Fetch(ctx, FetchRequest{Metadata: types.PaperMetadata{Title: "another paper"}, Method: MethodTitle})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = o.Fetch(ctx, FetchRequest{Metadata: types.PaperMetadata{DOI: "10.1145/closed"}, Method: MethodID})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = o.Fetch(ctx, FetchRequest{Metadata: types.PaperMetadata{}, Method: MethodID})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSemanticScholar_APIKeyAndFetch(t *testing.T) {
	var srvURL, gotKey string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/paper/ARXIV:1706.03762":
			gotKey = r.Header.Get("X-Api-Key")
			w.Write([]byte(`{
  "paperId": "abc",
  "title": "Attention Is All You Need",
  "year": 2017,
  "venue": "NeurIPS",
  "authors": [{"name": "Ashish Vaswani"}],
  "externalIds": {"ArXiv": "1706.03762", "DOI": ""},
  "isOpenAccess": true,
  "openAccessPdf": {"url": "` + srvURL + `/attn.pdf"}
}`))
		case "/attn.pdf":
			w.Write(fakePDF)
		default:
			http.NotFound(w, r)
		}
	})
	srvURL = srv.URL
	b := testBase("semantic_scholar", srv, types.SourceConfig{})
	b.creds = staticCreds{"semantic_scholar": "secret-key"}
	s := &SemanticScholar{base: b}

	m, err := s.Resolve(context.Background(), ident.Arxiv("1706.03762v7"))
	require.NoError(t, err)
	assert.Equal(t, "secret-key", gotKey)
	assert.Equal(t, "Vaswani", m.FirstAuthor)
	assert.Equal(t, "1706.03762", m.ArxivID)
	assert.Equal(t, 2017, m.Year)

	got, err := s.Fetch(context.Background(), FetchRequest{Metadata: m, Method: MethodID})
	require.NoError(t, err)
	assert.Equal(t, fakePDF, got)
}

func TestEuropePMC_ResolveAndFetch(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search":
			assert.Equal(t, `DOI:"10.1371/journal.pone.0000001"`, r.URL.Query().Get("query"))
			w.Write([]byte(`{"hitCount":1,"resultList":{"result":[{
  "pmcid": "PMC123",
  "doi": "10.1371/journal.pone.0000001",
  "title": "Bird song learning.",
  "authorString": "Doe J, Roe R.",
  "pubYear": "2007",
  "isOpenAccess": "Y",
  "journalInfo": {"journal": {"title": "PLoS One"}}
}]}}`))
		case "/articles/PMC123":
			assert.Equal(t, "render", r.URL.Query().Get("pdf"))
			w.Write(fakePDF)
		default:
			http.NotFound(w, r)
		}
	})
	e := &EuropePMC{base: testBase("europepmc", srv, types.SourceConfig{}), render: srv.URL}
	ctx := context.Background()

	m, err := e.Resolve(ctx, ident.DOI("10.1371/journal.pone.0000001"))
	require.NoError(t, err)
	assert.Equal(t, "Bird song learning", m.Title)
	assert.Equal(t, "Doe", m.FirstAuthor)
	assert.Equal(t, 2007, m.Year)
	assert.True(t, m.IsOpenAccess)

	got, err := e.Fetch(ctx, FetchRequest{Metadata: m, Method: MethodID})
	require.NoError(t, err)
	assert.Equal(t, fakePDF, got)

	_, err = e.Resolve(ctx, ident.Arxiv("2301.07041"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUnpaywall_Fetch(t *testing.T) {
	var srvURL string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/10.1/oa":
			assert.Equal(t, "test@example.com", r.URL.Query().Get("email"))
			w.Write([]byte(`{"doi":"10.1/oa","title":"Open","year":2019,"is_oa":true,
"z_authors":[{"given":"A","family":"Author"}],
"best_oa_location":{"url_for_pdf":"` + srvURL + `/oa.pdf"}}`))
		case "/10.1/closed":
			w.Write([]byte(`{"doi":"10.1/closed","title":"Closed","is_oa":false,"best_oa_location":null}`))
		case "/oa.pdf":
			w.Write(fakePDF)
		default:
			http.NotFound(w, r)
		}
	})
	srvURL = srv.URL
	u := &Unpaywall{base: testBase("unpaywall", srv, types.SourceConfig{})}
	ctx := context.Background()

	m, err := u.Resolve(ctx, ident.DOI("10.1/oa"))
	require.NoError(t, err)
	assert.Equal(t, "Author", m.FirstAuthor)

	got, err := u.Fetch(ctx, FetchRequest{Metadata: types.PaperMetadata{DOI: "10.1/oa"}, Method: MethodID})
	require.NoError(t, err)
	assert.Equal(t, fakePDF, got)

	_, err = u.Fetch(ctx, FetchRequest{Metadata: types.PaperMetadata{DOI: "10.1/closed"}, Method: MethodID})
	assert.ErrorIs(t, err, ErrNotFound)

	u.http.Email = ""
	_, err = u.Resolve(ctx, ident.DOI("10.1/oa"))
	assert.ErrorIs(t, err, ErrAuthRequired)
}

func TestPLOS_Fetch(t *testing.T) {
	var gotPath, gotID string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotID = r.URL.Path, r.URL.Query().Get("id")
		w.Write(fakePDF)
	})
	p := &PLOS{base: testBase("plos", srv, types.SourceConfig{})}

	got, err := p.Fetch(context.Background(), FetchRequest{
		Metadata: types.PaperMetadata{DOI: "10.1371/journal.pcbi.1000001"},
		Method:   MethodID,
	})
	require.NoError(t, err)
	assert.Equal(t, fakePDF, got)
	assert.Equal(t, "/ploscompbiol/article/file", gotPath)
	assert.Equal(t, "10.1371/journal.pcbi.1000001", gotID)

	_, err = p.Fetch(context.Background(), FetchRequest{
		Metadata: types.PaperMetadata{DOI: "10.1038/nature12373"},
		Method:   MethodID,
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

const sampleArxivFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:arxiv="http://arxiv.org/schemas/atom">
  <entry>
    <id>http://arxiv.org/abs/2301.07041v2</id>
    <published>2023-01-17T18:00:00Z</published>
    <title>Verifying Language
      Models</title>
    <summary>  We study verification.  </summary>
    <author><name>Jane Doe</name></author>
    <author><name>John Roe</name></author>
    <arxiv:doi>10.1000/published</arxiv:doi>
    <arxiv:journal_ref>J. Verif. 1 (2023)</arxiv:journal_ref>
  </entry>
</feed>`

const sampleArxivError = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/api/errors#incorrect_id_format_for_9999.99999</id>
    <title>Error</title>
  </entry>
</feed>`

func TestArxiv_ResolveAndFetch(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case r.URL.Path == "/pdf/2301.07041":
			w.Write(fakePDF)
		case q.Get("id_list") == "2301.07041" || strings.HasPrefix(q.Get("search_query"), "ti:"):
			w.Write([]byte(sampleArxivFeed))
		case q.Get("id_list") != "":
			w.Write([]byte(sampleArxivError))
		default:
			http.NotFound(w, r)
		}
	})
	a := &Arxiv{base: testBase("arxiv", srv, types.SourceConfig{}), pdf: srv.URL + "/pdf"}
	ctx := context.Background()

	m, err := a.Resolve(ctx, ident.Arxiv("2301.07041"))
	require.NoError(t, err)
	assert.Equal(t, "Verifying Language Models", m.Title)
	assert.Equal(t, "2301.07041", m.ArxivID)
	assert.Equal(t, "10.1000/published", m.DOI)
	assert.Equal(t, "Doe", m.FirstAuthor)
	assert.Equal(t, 2023, m.Year)
	assert.Equal(t, "We study verification.", m.Abstract)
	assert.Equal(t, "J. Verif. 1 (2023)", m.Venue)

	_, err = a.Resolve(ctx, ident.Arxiv("9999.99999"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = a.Resolve(ctx, ident.DOI("10.1038/nature12373"))
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := a.Fetch(ctx, FetchRequest{Metadata: m, Method: MethodID})
	require.NoError(t, err)
	assert.Equal(t, fakePDF, got)

	got, err = a.Fetch(ctx, FetchRequest{Metadata: types.PaperMetadata{Title: "verifying language models"}, Method: MethodTitle})
	require.NoError(t, err)
	assert.Equal(t, fakePDF, got)
}

func TestInstitutional_SendsSessionCookie(t *testing.T) {
	var gotCookie, gotTarget string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
		gotTarget = r.URL.Query().Get("url")
		w.Write(fakePDF)
	})
	b := testBase("institutional", srv, types.SourceConfig{ProxyURL: srv.URL + "/login?url="})
	s := &Institutional{base: b}
	req := FetchRequest{Metadata: types.PaperMetadata{DOI: "10.1038/nature12373"}, Method: MethodID}

	_, err := s.Fetch(context.Background(), req)
	assert.ErrorIs(t, err, ErrAuthRequired, "no session stored")

	s.creds = staticCreds{"institutional": "ezproxy=abc123"}
	got, err := s.Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, fakePDF, got)
	assert.Equal(t, "ezproxy=abc123", gotCookie)
	assert.Equal(t, "https://doi.org/10.1038/nature12373", gotTarget)
}

func TestMirror_ScrapesEmbeddedPDF(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/10.1038/nature12373":
			w.Write([]byte(`<!DOCTYPE html><html><body>
<div id="article"><embed type="application/pdf" src="/files/paper.pdf#navpanes=0"></div>
</body></html>`))
		case "/files/paper.pdf":
			w.Write(fakePDF)
		case "/10.1/blocked":
			w.Write([]byte(challengePage))
		default:
			http.NotFound(w, r)
		}
	})
	m := newSciHub(testBase("scihub", srv, types.SourceConfig{MirrorURL: srv.URL}))
	ctx := context.Background()

	got, err := m.Fetch(ctx, FetchRequest{Metadata: types.PaperMetadata{DOI: "10.1038/nature12373"}, Method: MethodID})
	require.NoError(t, err)
	assert.Equal(t, fakePDF, got)

	_, err = m.Fetch(ctx, FetchRequest{Metadata: types.PaperMetadata{DOI: "10.1/blocked"}, Method: MethodID})
	assert.ErrorIs(t, err, ErrBlocked)

	_, err = m.Fetch(ctx, FetchRequest{Metadata: types.PaperMetadata{Title: "no doi"}, Method: MethodID})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMirror_LibGenLink(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ads.php":
			assert.Equal(t, "10.1038/nature12373", r.URL.Query().Get("doi"))
			w.Write([]byte(`<!DOCTYPE html><html><body><a href="get.php?md5=abc&key=x">GET</a></body></html>`))
		case "/get.php":
			w.Write(fakePDF)
		default:
			http.NotFound(w, r)
		}
	})
	m := newLibGen(testBase("libgen", srv, types.SourceConfig{MirrorURL: srv.URL + "/"}))

	got, err := m.Fetch(context.Background(), FetchRequest{Metadata: types.PaperMetadata{DOI: "10.1038/nature12373"}, Method: MethodID})
	require.NoError(t, err)
	assert.Equal(t, fakePDF, got)
}

type staticCreds map[string]string

func (c staticCreds) Session(source string) (string, bool) {
	v, ok := c[source]
	return v, ok
}
