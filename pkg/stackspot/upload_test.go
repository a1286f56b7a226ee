// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package stackspot

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// uploadServer serves both the form endpoint (/form) and the storage
// endpoint (/store).
func uploadServer(t *testing.T, storeStatus int) (*httptest.Server, map[string]string) {
	t.Helper()
	received := map[string]string{}
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/form":
			if got := r.Header.Get("Authorization"); got != "Bearer tok" {
				t.Errorf("Authorization = %q", got)
			}
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			received["file_name"], _ = body["file_name"].(string)
			received["target_type"], _ = body["target_type"].(string)
			if exp, _ := body["expiration"].(float64); exp != 60 {
				t.Errorf("expiration = %v", body["expiration"])
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":  "upload-1",
				"url": srv.URL + "/store",
				"form": map[string]string{
					"key":    "ctx/OrderController.java",
					"policy": "p",
				},
			})
		case "/store":
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("ParseMultipartForm: %v", err)
			}
			received["key"] = r.FormValue("key")
			received["policy"] = r.FormValue("policy")
			if f, hdr, err := r.FormFile("file"); err == nil {
				b, _ := io.ReadAll(f)
				received["file"] = string(b)
				received["filename"] = hdr.Filename
			}
			w.WriteHeader(storeStatus)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, received
}

// TestFormUploader_Upload tests the two-step presigned upload.
func TestFormUploader_Upload(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusCreated, http.StatusNoContent} {
		srv, received := uploadServer(t, status)
		file := writeTempFile(t, "OrderController.java", "class OrderController {}")

		u := NewFormUploader(UploadConfig{Endpoint: srv.URL + "/form"}, nil)
		id, err := u.Upload(context.Background(), file, "tok")
		if err != nil {
			t.Fatalf("status %d: Upload error = %v", status, err)
		}
		if id != "upload-1" {
			t.Errorf("expected upload-1, got %q", id)
		}
		r := received
		if r["file_name"] != "OrderController.java" || r["target_type"] != "CONTEXT" {
			t.Errorf("unexpected form request: %v", r)
		}
		if r["key"] != "ctx/OrderController.java" || r["policy"] != "p" {
			t.Errorf("form fields not forwarded: %v", r)
		}
		if r["file"] != "class OrderController {}" || r["filename"] != "OrderController.java" {
			t.Errorf("file part not sent: %v", r)
		}
	}
}

// TestFormUploader_StoreRejected tests a storage failure.
func TestFormUploader_StoreRejected(t *testing.T) {
	srv, _ := uploadServer(t, http.StatusForbidden)
	file := writeTempFile(t, "A.java", "x")

	_, err := NewFormUploader(UploadConfig{Endpoint: srv.URL + "/form"}, nil).Upload(context.Background(), file, "tok")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 APIError, got %v", err)
	}
}

// TestFormUploader_MissingFile tests a local file that does not exist.
func TestFormUploader_MissingFile(t *testing.T) {
	srv, _ := uploadServer(t, http.StatusOK)
	_, err := NewFormUploader(UploadConfig{Endpoint: srv.URL + "/form"}, nil).
		Upload(context.Background(), filepath.Join(t.TempDir(), "missing.java"), "tok")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

// TestNewObjectStoreUploader tests configuration validation and key layout.
func TestNewObjectStoreUploader(t *testing.T) {
	if _, err := NewObjectStoreUploader(ObjectStoreConfig{}, nil); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := NewObjectStoreUploader(ObjectStoreConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"}, nil); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured for missing bucket, got %v", err)
	}

	s, err := NewObjectStoreUploader(ObjectStoreConfig{
		Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b", Bucket: "routescope", Prefix: "/uploads/",
	}, nil)
	if err != nil {
		t.Fatalf("NewObjectStoreUploader error = %v", err)
	}
	if got := s.objectKey("req-1", "A.java"); got != "uploads/req-1/A.java" {
		t.Errorf("unexpected key %q", got)
	}
	if got := s.objectKey("", "A.java"); filepath.Base(got) != "A.java" || len(got) <= len("uploads/A.java") {
		t.Errorf("expected generated request id in key, got %q", got)
	}
}

// TestRequestID tests the context helpers.
func TestRequestID(t *testing.T) {
	if RequestID(context.Background()) != "" {
		t.Error("expected empty id")
	}
	if got := RequestID(WithRequestID(context.Background(), "r1")); got != "r1" {
		t.Errorf("expected r1, got %q", got)
	}
}
