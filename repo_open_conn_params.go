package wsfeed

import (
	"context"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
)

type (
	OpenConnectionParams struct {
		URL    url.URL
		Header http.Header
	}

	OpenConnectionParamsGetter func(ctx context.Context) (OpenConnectionParams, error)

	// OpenConnectionParamsRepo resolves where and how to dial right before every connection attempt,
	// so that short lived credentials can be refreshed between reconnects.
	OpenConnectionParamsRepo struct {
		logger Logger
		getter OpenConnectionParamsGetter
	}
)

func (r OpenConnectionParamsRepo) Get(
	ctx context.Context,
) (params OpenConnectionParams, err error) {
	params, err = r.getter(ctx)
	if err != nil {
		r.logger.Errorf("cannot fetch open connection params: %s", err)
	}
	return
}

func NewOpenConnectionParamsRepo(
	logger Logger,
	getter OpenConnectionParamsGetter,
) OpenConnectionParamsRepo {
	return OpenConnectionParamsRepo{getter: getter, logger: logger}
}

// StaticOpenConnectionParams always dials rawURL with header.
func StaticOpenConnectionParams(rawURL string, header http.Header) OpenConnectionParamsGetter {
	return func(context.Context) (OpenConnectionParams, error) {
		u, err := url.Parse(rawURL)
		if err != nil {
			return OpenConnectionParams{}, errors.Wrapf(ErrCannotConnect, "invalid url %q: %s", rawURL, err)
		}
		return OpenConnectionParams{URL: *u, Header: header.Clone()}, nil
	}
}
