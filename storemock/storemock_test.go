package storemock

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func catalog() []Product {
	return []Product{
		{
			ID:    100,
			Title: "Hoodie Classic",
			Variants: []Variant{
				{ID: 1001, Title: "S", Available: false, Option1: "S"},
				{ID: 1002, Title: "M", Available: true, Option1: "M"},
			},
		},
	}
}

func TestFeedShape(t *testing.T) {
	srv := httptest.NewServer(New(catalog()))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/products.json?limit=123")
	if err != nil {
		t.Fatalf("get feed: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Products []Product `json:"products"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode feed: %v", err)
	}
	if len(body.Products) != 1 || len(body.Products[0].Variants) != 2 {
		t.Fatalf("unexpected catalog: %+v", body.Products)
	}
	if body.Products[0].Variants[1].ID != 1002 || !body.Products[0].Variants[1].Available {
		t.Fatalf("variant 1002 should be available: %+v", body.Products[0].Variants[1])
	}
}

func TestSetAvailability(t *testing.T) {
	s := New(catalog())
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)

	s.SetAvailability(100, 1001, true)

	resp, err := http.Get(srv.URL + "/products.json")
	if err != nil {
		t.Fatalf("get feed: %v", err)
	}
	defer resp.Body.Close()
	var body struct {
		Products []Product `json:"products"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	if !body.Products[0].Variants[0].Available {
		t.Fatal("variant 1001 should have flipped available")
	}
}

func TestAddSoldOut(t *testing.T) {
	srv := httptest.NewServer(New(catalog()))
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/cart/add.js", "application/json",
		strings.NewReader(`{"id":"1001","quantity":1}`))
	if err != nil {
		t.Fatalf("post add: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("add of unavailable variant = %d, want 422", resp.StatusCode)
	}
}

func TestAddAvailable(t *testing.T) {
	srv := httptest.NewServer(New(catalog()))
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/cart/add.js", "application/json",
		strings.NewReader(`{"id":"1002","quantity":1}`))
	if err != nil {
		t.Fatalf("post add: %v", err)
	}
	defer resp.Body.Close()
	var body struct {
		ProductTitle string `json:"product_title"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode add response: %v", err)
	}
	if body.ProductTitle != "Hoodie Classic" {
		t.Fatalf("product_title = %q", body.ProductTitle)
	}
}

func TestScriptedBounces(t *testing.T) {
	s := New(catalog())
	s.SetScript(Script{CartBounces: 1})
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)

	get := func() string {
		t.Helper()
		resp, err := srv.Client().Get(srv.URL + "/checkout")
		if err != nil {
			t.Fatalf("get checkout: %v", err)
		}
		resp.Body.Close()
		return resp.Request.URL.Path
	}

	if path := get(); path != "/cart" {
		t.Fatalf("first initiation landed on %s, want /cart", path)
	}
	if path := get(); !strings.HasPrefix(path, "/checkouts/") {
		t.Fatalf("second initiation landed on %s, want /checkouts/", path)
	}
}
