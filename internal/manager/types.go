package manager

import (
	"context"

	"bundled/internal/fetch"
	"bundled/internal/manifest"
	"bundled/internal/netstate"
)

// Status is the derived lifecycle state of a bundle.
type Status int

const (
	StatusUnknown Status = iota
	StatusDownloading
	StatusCached
	StatusLoading
	StatusReady
)

func (s Status) String() string {
	switch s {
	case StatusDownloading:
		return "downloading"
	case StatusCached:
		return "cached"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	default:
		return "unknown"
	}
}

// ErrorKind classifies the last failure recorded on a bundle.
type ErrorKind int

const (
	ErrorNone ErrorKind = iota
	NoInternetConnection
	DownloadFailed
	InvalidBundle
)

func (k ErrorKind) String() string {
	switch k {
	case NoInternetConnection:
		return "no_internet_connection"
	case DownloadFailed:
		return "download_failed"
	case InvalidBundle:
		return "invalid_bundle"
	default:
		return ""
	}
}

// DownloadStatus is the aggregate status over a set of bundles.
type DownloadStatus int

const (
	DownloadCached DownloadStatus = iota
	DownloadDownloading
	DownloadErrorNoInternetConnection
	DownloadErrorDownloadFailed
	DownloadErrorNoBundles
)

func (s DownloadStatus) String() string {
	switch s {
	case DownloadCached:
		return "cached"
	case DownloadDownloading:
		return "downloading"
	case DownloadErrorNoInternetConnection:
		return "error_no_internet_connection"
	case DownloadErrorDownloadFailed:
		return "error_download_failed"
	default:
		return "error_no_bundles"
	}
}

// DownloadState aggregates progress across a set of bundles.
type DownloadState struct {
	Status         DownloadStatus
	BytesAvailable int64
	BytesTotal     int64
}

// Progress returns BytesAvailable/BytesTotal, or 1 when nothing is expected.
func (d DownloadState) Progress() float64 {
	if d.BytesTotal <= 0 {
		return 1
	}
	return float64(d.BytesAvailable) / float64(d.BytesTotal)
}

// Handle is a bundle materialized in memory.
type Handle interface {
	Close() error
}

// Loader turns bundle bytes into a Handle. An error marks the content invalid.
type Loader interface {
	Load(b *manifest.Bundle, data []byte) (Handle, error)
}

// Fetcher retrieves a payload from the remote content root.
type Fetcher interface {
	Get(ctx context.Context, url string, onProgress fetch.ProgressFunc) ([]byte, error)
}

// Connectivity reports the current network class.
type Connectivity interface {
	Reachability() netstate.Reachability
}
