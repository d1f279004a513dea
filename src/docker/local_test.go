package docker

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sofmeright/imagetree/src/runner"
	"github.com/sofmeright/imagetree/src/runner/runnertest"
)

func newLocal(h func(runner.Cmd) error) (*Local, *runnertest.Recorder) {
	rec := &runnertest.Recorder{Handler: h}
	return &Local{Runner: rec, Stdout: io.Discard, Stderr: io.Discard}, rec
}

func TestImages(t *testing.T) {
	l, rec := newLocal(func(c runner.Cmd) error {
		_, err := io.WriteString(c.Stdout,
			`{"repository":"example/notebook","tag":"family-base-1.0","id":"sha256:aa","size":"1.2GB","created":"2026-01-02 15:04:05 +0000 UTC"}`+"\n"+
				`{"repository":"example/notebook","tag":"<none>","id":"sha256:bb","size":"1GB","created":""}`+"\n"+
				"not json\n")
		return err
	})

	images, err := l.Images(context.Background(), "example/notebook")
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "example/notebook:family-base-1.0", images[0].Ref())
	assert.Equal(t, "1.2GB", images[0].Size)
	assert.Equal(t, time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC), images[0].CreatedAt.UTC())

	assert.Contains(t, rec.Lines()[0], "--filter reference=example/notebook")
}

func TestImagesFailure(t *testing.T) {
	l, _ := newLocal(func(runner.Cmd) error { return errors.New("daemon down") })
	_, err := l.Images(context.Background(), "r")
	assert.ErrorContains(t, err, "daemon down")
}

func TestRemoveTolerant(t *testing.T) {
	l, rec := newLocal(func(c runner.Cmd) error {
		if c.Args[1] == "r:missing" {
			return errors.New("No such image")
		}
		return nil
	})

	removed := l.Remove(context.Background(), "r:a", "r:missing", "r:b")
	assert.Equal(t, 2, removed)
	assert.Equal(t, []string{"docker rmi r:a", "docker rmi r:missing", "docker rmi r:b"}, rec.Lines())
}

func TestPruneTolerant(t *testing.T) {
	l, rec := newLocal(func(runner.Cmd) error { return errors.New("nothing to prune") })
	l.Prune(context.Background())
	assert.Equal(t, []string{"docker image prune --force"}, rec.Lines())
}

func TestInteractive(t *testing.T) {
	l, rec := newLocal(nil)
	ctx := context.Background()

	require.NoError(t, l.Shell(ctx, "r:t"))
	require.NoError(t, l.Run(ctx, "r:t", RunOptions{}))
	require.NoError(t, l.Run(ctx, "r:t", RunOptions{Port: 9999, HostDir: "/src", Mount: "/home/jovyan/work"}))

	assert.Equal(t, []string{
		"docker run --rm -it r:t bash",
		"docker run --rm -it -p 8888:8888 r:t",
		"docker run --rm -it -p 9999:9999 -v /src:/home/jovyan/work r:t",
	}, rec.Lines())
}

func TestPushAndRepo2Docker(t *testing.T) {
	l, rec := newLocal(func(c runner.Cmd) error {
		if c.Name == "docker" && c.Args[0] == "rmi" {
			return errors.New("No such image")
		}
		return nil
	})
	ctx := context.Background()

	require.NoError(t, l.PushAll(ctx, "example/notebook"))
	require.NoError(t, l.PushReadme(ctx, "example/notebook", "README.md"))
	require.NoError(t, l.Repo2Docker(ctx, "dockerfiles/family/base", "r2d-family-base"))

	assert.Equal(t, []string{
		"docker image push --all-tags example/notebook",
		"docker pushrm --file README.md example/notebook",
		"docker rmi r2d-family-base",
		"jupyter-repo2docker --debug --no-run --image-name r2d-family-base dockerfiles/family/base",
	}, rec.Lines())
}
