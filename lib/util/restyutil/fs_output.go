package restyutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

// FilesystemOutput writes one file per message into a directory, it is meant for looking at
// what a portal actually returned while writing a profile.
type FilesystemOutput struct {
	directory string
}

// NewFilesystemOutput empties `dir` and returns an output writing into it.
func NewFilesystemOutput(dir string) (FilesystemOutput, error) {
	err := os.RemoveAll(dir)
	if err != nil {
		return FilesystemOutput{}, err
	}
	err = os.MkdirAll(dir, 0777)
	if err != nil {
		return FilesystemOutput{}, err
	}
	return FilesystemOutput{directory: dir}, nil
}

func (o FilesystemOutput) Write(id string, contents string) {
	err := os.WriteFile(filepath.Join(o.directory, id), []byte(contents), 0600)
	if err != nil {
		slog.Warn("failed to write message info file", "id", id, "err", err)
	}
}

var unsafeChars = regexp.MustCompile(`[^\w\-.]+`)

func fileID(n uint64, method, path string) string {
	path = strings.Trim(unsafeChars.ReplaceAllString(path, "_"), "_")
	if path == "" {
		path = "root"
	}
	return fmt.Sprintf("%03d-%s-%s.txt", n, strings.ToLower(method), path)
}

// DumpResponses writes every response received by `client` to `out`.
func DumpResponses(client *resty.Client, out FilesystemOutput) {
	var counter uint64
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		n := atomic.AddUint64(&counter, 1)
		method := res.Request.Method
		requestUrl := res.Request.URL
		path := requestUrl
		if res.RawResponse != nil && res.RawResponse.Request != nil {
			requestUrl = res.RawResponse.Request.URL.String()
			path = res.RawResponse.Request.URL.Path
		}

		var contents strings.Builder
		fmt.Fprintf(&contents, "%s %s\n%s\n\n", method, requestUrl, res.Status())
		for key, values := range res.Header() {
			fmt.Fprintf(&contents, "%s: %s\n", key, strings.Join(values, ", "))
		}
		contents.WriteString("\n")
		contents.Write(res.Body())

		out.Write(fileID(n, method, path), contents.String())
		return nil
	})
}
