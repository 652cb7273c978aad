package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"DHAdmin/config"
	"DHAdmin/core/live"
	"DHAdmin/storage"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetConfig_DefaultsAndErrors(t *testing.T) {
	api := newTestAPI(t)
	token := api.login(t, "cfg@example.com")

	rec := api.do(t, http.MethodGet, "/api/projects/p1/config?type=node", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	node := decodeBody(t, rec)
	assert.Equal(t, "p1", node["projectId"])
	assert.Equal(t, "system", node["background"].(map[string]interface{})["source"])

	rec = api.do(t, http.MethodGet, "/api/projects/p1/config?type=global", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decodeBody(t, rec), "digitalHuman")

	rec = api.do(t, http.MethodGet, "/api/projects/p1/config?type=other", nil, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "无效的配置类型", decodeBody(t, rec)["error"])

	rec = api.do(t, http.MethodGet, "/api/projects/bad.id/config?type=node", nil, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "无效的项目ID", decodeBody(t, rec)["error"])

	rec = api.do(t, http.MethodGet, "/api/projects/p1/config?type=node", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSaveConfig(t *testing.T) {
	api := newTestAPI(t)
	token := api.login(t, "save@example.com")

	cases := []struct {
		name string
		body interface{}
		msg  string
	}{
		{"missing type", map[string]interface{}{"config": map[string]interface{}{}}, "缺少必要参数"},
		{"missing config", map[string]interface{}{"type": "node"}, "缺少必要参数"},
		{"bad node", map[string]interface{}{"type": "node", "config": "text"}, "节点配置格式不正确"},
		{"bad global", map[string]interface{}{"type": "global", "config": []int{1}}, "全局配置格式不正确"},
		{"unknown type", map[string]interface{}{"type": "other", "config": map[string]interface{}{}}, "无效的配置类型"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := api.do(t, http.MethodPost, "/api/projects/p1/config", c.body, token)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, c.msg, decodeBody(t, rec)["error"])
		})
	}

	rec := api.do(t, http.MethodGet, "/api/projects/p1/config?type=node", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	node := decodeBody(t, rec)
	node["background"] = map[string]interface{}{"source": "custom", "url": "/media/backgrounds/p1/a.png", "type": "image"}

	rec = api.do(t, http.MethodPost, "/api/projects/p1/config", map[string]interface{}{"type": "node", "config": node}, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody(t, rec)
	assert.Equal(t, true, resp["success"])
	saved := resp["config"].(map[string]interface{})
	assert.Equal(t, node["id"], saved["id"])
	assert.Equal(t, "custom", saved["background"].(map[string]interface{})["source"])

	rec = api.do(t, http.MethodGet, "/api/projects/p1/config?type=node", nil, token)
	assert.Equal(t, "custom", decodeBody(t, rec)["background"].(map[string]interface{})["source"])
}

func TestExportThenImport(t *testing.T) {
	api := newTestAPI(t)
	token := api.login(t, "io@example.com")

	rec := api.do(t, http.MethodGet, "/api/projects/p1/config/export?type=all&format=yaml", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "project-config-p1-")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".yaml")
	exported := rec.Body.Bytes()
	assert.Contains(t, string(exported), "digitalHuman:")

	// 导入到另一个项目并保存
	req := httptest.NewRequest(http.MethodPost, "/api/projects/p2/config/import?format=yaml&apply=true", bytes.NewReader(exported))
	req.Header.Set("Authorization", "Bearer "+token)
	imp := httptest.NewRecorder()
	api.handler.ServeHTTP(imp, req)
	require.Equal(t, http.StatusOK, imp.Code, imp.Body.String())
	resp := decodeBody(t, imp)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, true, resp["applied"])
	assert.Equal(t, "p2", resp["nodeConfig"].(map[string]interface{})["projectId"])
	assert.Equal(t, "p2", resp["globalConfig"].(map[string]interface{})["projectId"])

	rec = api.do(t, http.MethodGet, "/api/projects/p1/config/export?type=node", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "node-config-p1-")
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	rec = api.do(t, http.MethodGet, "/api/projects/p1/config/export?format=xml", nil, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImport_MultipartAndValidation(t *testing.T) {
	api := newTestAPI(t)
	token := api.login(t, "mp@example.com")

	rec := api.do(t, http.MethodGet, "/api/projects/p1/config/export?type=global", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "global.json")
	require.NoError(t, err)
	_, _ = fw.Write(rec.Body.Bytes())
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/projects/p1/config/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	imp := httptest.NewRecorder()
	api.handler.ServeHTTP(imp, req)
	require.Equal(t, http.StatusOK, imp.Code, imp.Body.String())
	resp := decodeBody(t, imp)
	assert.Equal(t, false, resp["applied"])
	assert.Contains(t, resp, "globalConfig")
	assert.NotContains(t, resp, "nodeConfig")

	rec = api.do(t, http.MethodPost, "/api/projects/p1/config/import", map[string]interface{}{}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "文件必须包含节点配置或全局配置", decodeBody(t, rec)["error"])

	rec = api.do(t, http.MethodPost, "/api/projects/p1/config/import", map[string]interface{}{
		"globalConfig": map[string]interface{}{"interaction": map[string]interface{}{}},
	}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "配置验证失败")
}

func TestVersions(t *testing.T) {
	api := newTestAPI(t)
	token := api.login(t, "ver@example.com")

	rec := api.do(t, http.MethodPost, "/api/projects/p1/versions", map[string]string{"description": "  "}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "请输入版本描述", decodeBody(t, rec)["error"])

	var ids []string
	for _, desc := range []string{"v1", "v2", "v3", "v4"} {
		rec = api.do(t, http.MethodPost, "/api/projects/p1/versions", map[string]string{"description": desc}, token)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		version := decodeBody(t, rec)["version"].(map[string]interface{})
		assert.Equal(t, desc, version["description"])
		assert.NotNil(t, version["nodeConfig"])
		assert.NotNil(t, version["globalConfig"])
		ids = append(ids, version["id"].(string))
	}

	rec = api.do(t, http.MethodGet, "/api/projects/p1/versions", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	versions := decodeBody(t, rec)["versions"].([]interface{})
	require.Len(t, versions, 3, "oldest snapshot is dropped past the cap")
	assert.Equal(t, "v4", versions[0].(map[string]interface{})["description"])

	rec = api.do(t, http.MethodGet, "/api/projects/p1/versions/"+ids[3], nil, token)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/projects/p1/versions/"+ids[0], nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "版本不存在", decodeBody(t, rec)["error"])

	rec = api.do(t, http.MethodGet, "/api/projects/p2/versions", nil, token)
	assert.Empty(t, decodeBody(t, rec)["versions"])
}

type fakeAssets struct {
	uploaded map[string][]byte
}

func (f *fakeAssets) Upload(_ context.Context, projectID, contentType string, size int64, r io.Reader) (*storage.Asset, error) {
	kind, ext, err := storage.ClassifyUpload(contentType, size)
	if err != nil {
		return nil, err
	}
	data, _ := io.ReadAll(r)
	key := storage.ObjectKey(projectID, ext)
	f.uploaded[key] = data
	return &storage.Asset{ObjectKey: key, URL: storage.MediaRoute + key, Type: kind, ContentType: contentType, Size: size}, nil
}

func (f *fakeAssets) Open(_ context.Context, key string) (io.ReadCloser, *storage.ObjectInfo, error) {
	data, ok := f.uploaded[key]
	if !ok {
		return nil, nil, storage.ErrAssetNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), &storage.ObjectInfo{Key: key, ContentType: "image/png", Size: int64(len(data))}, nil
}

func uploadRequest(t *testing.T, token, contentType string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="bg"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, _ = part.Write(data)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/projects/p1/background", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestUploadBackground(t *testing.T) {
	assets := &fakeAssets{uploaded: map[string][]byte{}}
	api := newTestAPI(t, func(_ *config.Config, d *Deps) { d.Assets = assets })
	token := api.login(t, "bg@example.com")

	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, uploadRequest(t, token, "image/png", []byte("png-bytes")))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decodeBody(t, rec)
	assert.Equal(t, "image", resp["type"])
	url := resp["url"].(string)
	assert.True(t, strings.HasPrefix(url, "/media/backgrounds/p1/"), url)

	media := httptest.NewRecorder()
	api.handler.ServeHTTP(media, httptest.NewRequest(http.MethodGet, url, nil))
	require.Equal(t, http.StatusOK, media.Code)
	assert.Equal(t, "png-bytes", media.Body.String())
	assert.Equal(t, "image/png", media.Header().Get("Content-Type"))

	rec = httptest.NewRecorder()
	api.handler.ServeHTTP(rec, uploadRequest(t, token, "text/plain", []byte("nope")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	missing := httptest.NewRecorder()
	api.handler.ServeHTTP(missing, httptest.NewRequest(http.MethodGet, "/media/backgrounds/p1/missing.png", nil))
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestUploadBackground_StorageDisabled(t *testing.T) {
	api := newTestAPI(t)
	token := api.login(t, "nobg@example.com")

	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, uploadRequest(t, token, "image/png", []byte("x")))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestConfigStream_ReceivesSavedConfig(t *testing.T) {
	api := newTestAPI(t)
	token := api.login(t, "ws@example.com")

	srv := httptest.NewServer(api.handler)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/projects/p1/config?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	require.Eventually(t, func() bool { return api.hub.ClientCount("p1") == 1 }, 2*time.Second, 10*time.Millisecond)

	rec := api.do(t, http.MethodGet, "/api/projects/p1/config?type=global", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	var global map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &global))

	rec = api.do(t, http.MethodPost, "/api/projects/p1/config", map[string]interface{}{"type": "global", "config": global}, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg live.WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, live.MsgTypeGlobalConfig, msg.Type)
	assert.Equal(t, "p1", msg.ProjectID)
	assert.Contains(t, string(msg.Data), "digitalHuman")
}

func TestConfigStream_RequiresToken(t *testing.T) {
	api := newTestAPI(t)
	srv := httptest.NewServer(api.handler)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/projects/p1/config"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
