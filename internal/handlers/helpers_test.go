// helpers_test.go
package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"nihongo_memo/internal/model"
	"nihongo_memo/internal/repository"
	"nihongo_memo/internal/service"
	"nihongo_memo/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// httpRequestDetails はHTTPリクエストの送信に必要な情報をまとめます。
type httpRequestDetails struct {
	Method  string
	Path    string
	Body    interface{}
	Headers map[string]string
}

// httpResponseExpectations はHTTPレスポンスの検証に必要な期待値をまとめます。
type httpResponseExpectations struct {
	ExpectedCode     int
	ExpectedErrorMsg string
}

// sendRequest はHTTPリクエストを送信し、基本的なレスポンス情報を返します。
// ステータスコードとエラーメッセージのアサーションもここで行います。
func sendRequest(t *testing.T, server *httptest.Server, details httpRequestDetails, expectations httpResponseExpectations) []byte {
	t.Helper()

	var reqBodyReader io.Reader
	if details.Body != nil {
		if strPayload, ok := details.Body.(string); ok {
			reqBodyReader = strings.NewReader(strPayload)
		} else {
			reqBodyBytes, err := json.Marshal(details.Body)
			require.NoError(t, err, "Failed to marshal request body")
			reqBodyReader = bytes.NewBuffer(reqBodyBytes)
		}
	}

	req, err := http.NewRequest(details.Method, server.URL+details.Path, reqBodyReader)
	require.NoError(t, err, "Failed to create request")

	if reqBodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range details.Headers {
		req.Header.Set(key, value)
	}

	resp, err := server.Client().Do(req)
	require.NoError(t, err, "Failed to execute request")
	defer resp.Body.Close()

	respBodyBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "Failed to read response body")

	assert.Equal(t, expectations.ExpectedCode, resp.StatusCode, "Status code mismatch: %s", string(respBodyBytes))
	verifyErrorResponse(t, respBodyBytes, expectations.ExpectedErrorMsg)

	return respBodyBytes
}

// verifyErrorResponse はエラーレスポンスのボディを検証します。
func verifyErrorResponse(t *testing.T, bodyBytes []byte, expectedErrorMsgPart string) {
	t.Helper()
	if expectedErrorMsgPart == "" {
		return // 期待するエラーメッセージがない場合は何もしない
	}

	var errResp model.APIErrorResponse
	require.NoError(t, json.Unmarshal(bodyBytes, &errResp), "error response must be JSON: %s", string(bodyBytes))
	assert.Contains(t, errResp.Error.Message, expectedErrorMsgPart)
}

// newTestLibrary は一時ディレクトリのローカルキャッシュと未設定のリモートで Library を作ります
func newTestLibrary(t *testing.T) *service.Library {
	t.Helper()
	db, err := repository.NewLocalDB(filepath.Join(t.TempDir(), "local.db"), testLogger)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	clients := repository.NewClientFactory(model.RemoteConfig{}, testLogger)
	lib := service.NewLibrary(repository.NewGormSnapshotRepository(db), clients, session.Static(""), testLogger)
	lib.Start(context.Background())
	t.Cleanup(func() {
		lib.Close()
		lib.Wait()
	})
	return lib
}
