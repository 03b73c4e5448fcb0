package media

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetcher_DirectFetchReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	f := NewFetcher("")
	data, err := f.Fetch(context.Background(), srv.URL, 1024, false)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("got %q, want hello", data)
	}
}

func TestFetcher_RoutesThroughProxyWhenRequested(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("url")
		w.Write([]byte("proxied"))
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL)
	data, err := f.Fetch(context.Background(), "https://untrusted.example/x.png", 1024, true)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(data) != "proxied" {
		t.Fatalf("got %q, want proxied", data)
	}
	if gotQuery != "https://untrusted.example/x.png" {
		t.Fatalf("proxy received url=%q", gotQuery)
	}
}

func TestFetcher_RejectsBodyOverCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 20))
	}))
	defer srv.Close()

	f := NewFetcher("")
	if _, err := f.Fetch(context.Background(), srv.URL, 10, false); err == nil {
		t.Fatal("expected an error for a body exceeding the byte cap")
	}
}

func TestFetcher_NonSuccessStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher("")
	if _, err := f.Fetch(context.Background(), srv.URL, 1024, false); err == nil {
		t.Fatal("expected an error for a 404 response")
	}
}

func TestTenorResolver_ExtractsOGVideoURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><meta property="og:video" content="https://media.tenor.com/abc.gif"></head></html>`))
	}))
	defer srv.Close()

	r := NewTenorResolver()
	url, err := r.ResolveTenorURL(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("ResolveTenorURL: %v", err)
	}
	if url != "https://media.tenor.com/abc.gif" {
		t.Fatalf("got %q", url)
	}
}

func TestTenorResolver_NoMatchIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head></head></html>`))
	}))
	defer srv.Close()

	r := NewTenorResolver()
	if _, err := r.ResolveTenorURL(context.Background(), srv.URL); err == nil {
		t.Fatal("expected an error when no og:video tag is present")
	}
}

type fakeFetch struct {
	data []byte
	err  error
}

func (f *fakeFetch) Fetch(ctx context.Context, url string, maxBytes int64, useProxy bool) ([]byte, error) {
	return f.data, f.err
}

type fakeWorker struct {
	gif []byte
	err error
}

func (w *fakeWorker) ConvertSticker(ctx context.Context, tier uint8, lottie []byte) ([]byte, error) {
	return w.gif, w.err
}

func TestConverter_DownloadsAndConverts(t *testing.T) {
	fetch := &fakeFetch{data: []byte(`{"lottie":true}`)}
	worker := &fakeWorker{gif: []byte("gifdata")}
	c := &Converter{Fetch: fetch, Worker: worker}

	gif, err := c.ConvertLottieToGIF(context.Background(), "sticker1")
	if err != nil {
		t.Fatalf("ConvertLottieToGIF: %v", err)
	}
	if string(gif) != "gifdata" {
		t.Fatalf("got %q", gif)
	}
}

func TestConverter_FetchErrorPropagates(t *testing.T) {
	fetch := &fakeFetch{err: fmt.Errorf("boom")}
	c := &Converter{Fetch: fetch, Worker: &fakeWorker{}}

	if _, err := c.ConvertLottieToGIF(context.Background(), "sticker1"); err == nil {
		t.Fatal("expected an error when downloading the lottie payload fails")
	}
}

func TestConverter_WorkerErrorPropagates(t *testing.T) {
	fetch := &fakeFetch{data: []byte(`{}`)}
	worker := &fakeWorker{err: fmt.Errorf("worker offline")}
	c := &Converter{Fetch: fetch, Worker: worker}

	if _, err := c.ConvertLottieToGIF(context.Background(), "sticker1"); err == nil {
		t.Fatal("expected an error when the worker fails to convert")
	}
}
