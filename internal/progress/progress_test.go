package progress

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReport(t *testing.T) {
	var got []string
	ctx := With(context.Background(), func(msg string) { got = append(got, msg) })

	Report(ctx, "page %d of %d", 1, 3)
	Report(context.Background(), "dropped")

	assert.Equal(t, []string{"page 1 of 3"}, got)
}
