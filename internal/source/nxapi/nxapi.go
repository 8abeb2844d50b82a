package nxapi

import (
	"context"
	"time"

	"codeberg.org/mutker/nexmon/internal/config"
	"codeberg.org/mutker/nexmon/internal/errors"
	"codeberg.org/mutker/nexmon/internal/logger"
	"codeberg.org/mutker/nexmon/internal/source"
)

// Source pulls samples over the switch management API. One login session per
// poll; failed classes degrade the result instead of aborting it.
type Source struct{}

func New() *Source {
	return &Source{}
}

func (*Source) Name() string {
	return "nxapi"
}

func (*Source) Fetch(ctx context.Context, sw config.Switch) (*source.Result, error) {
	c := newClient(sw)
	if err := c.Login(ctx); err != nil {
		return nil, err
	}
	defer c.Logout(ctx)

	res := &source.Result{}
	failed := 0
	for _, q := range classQueries {
		if err := ctx.Err(); err != nil {
			return nil, errors.New().Wrap(errors.ErrTimeout, err)
		}
		attrs, err := c.ClassQuery(ctx, q.endpoint)
		if err != nil {
			logger.Warn().Err(err).
				Str("switch", sw.Addr).
				Str("endpoint", q.endpoint).
				Msg("Class query failed")
			failed++
			continue
		}
		q.parse(attrs, res, time.Now())
	}

	if failed == len(classQueries) {
		return nil, errors.New().WithMessage(ErrTransport, "all class queries failed")
	}
	res.Partial = failed > 0

	return res, nil
}
