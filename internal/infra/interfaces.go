package infra

import "context"

type DownloaderInterface interface {
	Fetch(ctx context.Context, rawURL, filename string) (*File, error)
}

var _ DownloaderInterface = (*HTTPDownloader)(nil)
