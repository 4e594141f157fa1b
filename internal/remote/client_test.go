package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, New(Config{BaseURL: srv.URL + "/", UserAgent: "thumbsync/test", APIKey: "secret"})
}

func TestList(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != listPath {
			t.Errorf("path = %s, want %s", r.URL.Path, listPath)
		}
		if got := r.URL.Query().Get("path"); got != "photos" {
			t.Errorf("path query = %q, want photos", got)
		}
		if got := r.Header.Get("User-Agent"); got != "thumbsync/test" {
			t.Errorf("User-Agent = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		json.NewEncoder(w).Encode(Listing{
			Folders: []Folder{{Name: "2024", Path: "photos/2024"}},
			Files:   []File{{Name: "a.jpg", Path: "photos/a.jpg", Size: 100, Modified: "2024-01-01T00:00:00Z"}},
		})
	})

	listing, err := client.List(context.Background(), "photos")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(listing.Folders) != 1 || listing.Folders[0].Path != "photos/2024" {
		t.Errorf("Folders = %+v", listing.Folders)
	}
	if len(listing.Files) != 1 || listing.Files[0].Size != 100 || listing.Files[0].Modified != "2024-01-01T00:00:00Z" {
		t.Errorf("Files = %+v", listing.Files)
	}
}

func TestListErrorEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"error field with 200", http.StatusOK, `{"error":"permission denied"}`, "permission denied"},
		{"error field with 500", http.StatusInternalServerError, `{"error":"backend down"}`, "backend down"},
		{"bare 404", http.StatusNotFound, `not found`, "404"},
		{"malformed json", http.StatusOK, `{"folders":`, "decode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, client := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})

			_, err := client.List(context.Background(), "")
			if err == nil {
				t.Fatal("List() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("List() error = %q, want it to contain %q", err, tt.wantMsg)
			}
		})
	}
}

func TestEndpointNotConfigured(t *testing.T) {
	client := New(Config{})
	ctx := context.Background()

	if client.Configured() {
		t.Error("Configured() = true without base URL")
	}
	if _, err := client.List(ctx, ""); !errors.Is(err, ErrEndpointNotConfigured) {
		t.Errorf("List() error = %v, want ErrEndpointNotConfigured", err)
	}
	if _, err := client.ResolveURL(ctx, "a.jpg"); !errors.Is(err, ErrEndpointNotConfigured) {
		t.Errorf("ResolveURL() error = %v, want ErrEndpointNotConfigured", err)
	}
	if _, err := client.Upload(ctx, "a.jpg", []byte("x"), "image/jpeg"); !errors.Is(err, ErrEndpointNotConfigured) {
		t.Errorf("Upload() error = %v, want ErrEndpointNotConfigured", err)
	}
	if _, err := client.Exists(ctx, "a.jpg"); !errors.Is(err, ErrEndpointNotConfigured) {
		t.Errorf("Exists() error = %v, want ErrEndpointNotConfigured", err)
	}
}

func TestResolveURL(t *testing.T) {
	t.Run("unprotected uses download endpoint", func(t *testing.T) {
		client := New(Config{BaseURL: "http://files.local"})
		got, err := client.ResolveURL(context.Background(), "photos/a b.jpg")
		if err != nil {
			t.Fatalf("ResolveURL() error = %v", err)
		}
		if want := "http://files.local/api/files/download?path=photos%2Fa+b.jpg"; got != want {
			t.Errorf("ResolveURL() = %q, want %q", got, want)
		}
	})

	t.Run("protected requests signed url", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != signedURLPath {
				t.Errorf("path = %s", r.URL.Path)
			}
			io.WriteString(w, `{"url":"/signed/a.jpg?token=abc"}`)
		}))
		defer srv.Close()

		client := New(Config{BaseURL: srv.URL, Protected: true})
		got, err := client.ResolveURL(context.Background(), "a.jpg")
		if err != nil {
			t.Fatalf("ResolveURL() error = %v", err)
		}
		if want := srv.URL + "/signed/a.jpg?token=abc"; got != want {
			t.Errorf("ResolveURL() = %q, want %q", got, want)
		}
	})
}

func TestUpload(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != uploadPath {
			t.Errorf("%s %s, want POST %s", r.Method, r.URL.Path, uploadPath)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm() error = %v", err)
		}
		if got := r.FormValue("path"); got != "photos/a_small.jpeg" {
			t.Errorf("path field = %q", got)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("FormFile() error = %v", err)
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if string(data) != "jpegbytes" {
			t.Errorf("file content = %q", data)
		}
		if header.Filename != "a_small.jpeg" {
			t.Errorf("filename = %q", header.Filename)
		}
		if ct := header.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("part Content-Type = %q", ct)
		}
		io.WriteString(w, `{"url":"https://cdn/photos/a_small.jpeg"}`)
	})

	got, err := client.Upload(context.Background(), "photos/a_small.jpeg", []byte("jpegbytes"), "image/jpeg")
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if got != "https://cdn/photos/a_small.jpeg" {
		t.Errorf("Upload() = %q", got)
	}
}

func TestExists(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		exists := r.URL.Query().Get("path") == "present.jpeg"
		json.NewEncoder(w).Encode(map[string]bool{"exists": exists})
	})

	ctx := context.Background()
	if ok, err := client.Exists(ctx, "present.jpeg"); err != nil || !ok {
		t.Errorf("Exists(present) = %v, %v", ok, err)
	}
	if ok, err := client.Exists(ctx, "absent.jpeg"); err != nil || ok {
		t.Errorf("Exists(absent) = %v, %v", ok, err)
	}
}
