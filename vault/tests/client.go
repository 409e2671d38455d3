package tests

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"

	"vehicle_vault/vault/quota"
	"vehicle_vault/vault/schema"
	"vehicle_vault/vault/search"
	"vehicle_vault/vault/services"

	"github.com/go-chi/chi/v5"
)

type httpTestRequest struct {
	api http.Handler

	method   string
	endpoint string
	headers  map[string]string
	json     interface{}
	body     io.Reader
}

func newHttpTestRequest(api http.Handler, method, endpoint string) *httpTestRequest {
	return &httpTestRequest{
		api:      api,
		method:   method,
		endpoint: endpoint,
		headers:  nil,
		json:     nil,
		body:     nil,
	}
}

func (r *httpTestRequest) Header(key, value string) *httpTestRequest {
	if r.headers == nil {
		r.headers = make(map[string]string)
	}
	r.headers[key] = value
	return r
}

func (r *httpTestRequest) Auth(token string) *httpTestRequest {
	return r.Header("Authorization", fmt.Sprintf("Bearer %v", token))
}

func (r *httpTestRequest) Json(data interface{}) *httpTestRequest {
	r.json = data
	return r
}

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
)

// response body will be parsed into result, passing nil indicates that no result is returned.
func (r *httpTestRequest) Do(result interface{}) error {
	if r.json != nil {
		body := new(bytes.Buffer)
		err := json.NewEncoder(body).Encode(r.json)
		if err != nil {
			return fmt.Errorf("error encoding json body for endpoint %v: %w", r.endpoint, err)
		}
		r.body = body
	}

	req := httptest.NewRequest(r.method, r.endpoint, r.body)
	if r.headers != nil {
		for k, v := range r.headers {
			req.Header.Add(k, v)
		}
	}

	w := httptest.NewRecorder()

	r.api.ServeHTTP(w, req)

	res := w.Result()
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		switch res.StatusCode {
		case http.StatusUnauthorized:
			return ErrUnauthorized
		case http.StatusForbidden:
			return ErrForbidden
		case http.StatusNotFound:
			return ErrNotFound
		case http.StatusConflict:
			return ErrConflict
		}
		return fmt.Errorf("%v request to endpoint %v returned status %d, content '%v'", r.method, r.endpoint, res.StatusCode, w.Body.String())
	}

	if result != nil {
		err := json.NewDecoder(res.Body).Decode(result)
		if err != nil {
			return fmt.Errorf("error parsing %v response from endpoint %v: %w", r.method, r.endpoint, err)
		}
	}

	return nil
}

type client struct {
	api       chi.Router
	authToken string
	userId    string
}

func (c *client) Get(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "GET", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

func (c *client) Post(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "POST", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

func (c *client) Delete(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "DELETE", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

type loginInfo struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *client) signup(username, email, password string) (loginInfo, error) {
	body := map[string]string{
		"email": email, "username": username, "password": password,
	}

	err := c.Post("/user/signup").Json(body).Do(nil)
	if err != nil {
		return loginInfo{}, err
	}

	return loginInfo{Email: email, Password: password}, nil
}

func (c *client) login(login loginInfo) error {
	var res map[string]string
	err := c.Post("/user/login").Json(login).Do(&res)
	if err != nil {
		return err
	}

	c.authToken = res["access_token"]
	c.userId = res["user_id"]

	return nil
}

func (c *client) addUser(username, email, password, role string, supervisorId *string) (string, error) {
	body := map[string]interface{}{
		"email": email, "username": username, "password": password, "role": role,
	}
	if supervisorId != nil {
		body["supervisor_id"] = *supervisorId
	}

	var res map[string]string
	err := c.Post("/user/create").Json(body).Do(&res)
	return res["user_id"], err
}

func (c *client) listUsers() ([]services.UserInfo, error) {
	var res []services.UserInfo
	err := c.Get("/user/list").Do(&res)
	return res, err
}

func (c *client) userInfo() (services.UserInfo, error) {
	var res services.UserInfo
	err := c.Get("/user/info").Do(&res)
	return res, err
}

func (c *client) setSharePolicy(userId string, canShare bool, targetIds []string) error {
	body := map[string]interface{}{"can_share": canShare, "target_ids": targetIds}
	return c.Post(fmt.Sprintf("/user/%v/share-policy", userId)).Json(body).Do(nil)
}

type uploadArgs struct {
	Filename       string                 `json:"filename"`
	AssignedToId   *string                `json:"assigned_to_id,omitempty"`
	CoAssigneeIds  []string               `json:"co_assignee_ids,omitempty"`
	ShareTargetIds []string               `json:"share_target_ids,omitempty"`
	Records        []schema.VehicleRecord `json:"records"`
}

func (c *client) upload(args uploadArgs) (map[string]interface{}, error) {
	var res map[string]interface{}
	err := c.Post("/dataset/upload").Json(args).Do(&res)
	return res, err
}

func (c *client) uploadOwn(filename string, records []schema.VehicleRecord) (string, error) {
	res, err := c.upload(uploadArgs{Filename: filename, Records: records})
	if err != nil {
		return "", err
	}
	datasetId, _ := res["dataset_id"].(string)
	return datasetId, nil
}

func (c *client) uploadAssigned(filename, assignedTo string, coAssignees []string, records []schema.VehicleRecord) (string, error) {
	res, err := c.upload(uploadArgs{
		Filename: filename, AssignedToId: &assignedTo, CoAssigneeIds: coAssignees, Records: records,
	})
	if err != nil {
		return "", err
	}
	datasetId, _ := res["dataset_id"].(string)
	return datasetId, nil
}

func (c *client) listDatasets() ([]services.DatasetInfo, error) {
	var res []services.DatasetInfo
	err := c.Get("/dataset/list").Do(&res)
	return res, err
}

func (c *client) deleteDataset(datasetId string) error {
	return c.Delete(fmt.Sprintf("/dataset/%v", datasetId)).Do(nil)
}

func (c *client) shareDataset(datasetId, userId string) error {
	return c.Post(fmt.Sprintf("/dataset/%v/shares/%v", datasetId, userId)).Do(nil)
}

func (c *client) unshareDataset(datasetId, userId string) error {
	return c.Delete(fmt.Sprintf("/dataset/%v/shares/%v", datasetId, userId)).Do(nil)
}

func (c *client) addAssignee(datasetId, userId string) error {
	return c.Post(fmt.Sprintf("/dataset/%v/assignees/%v", datasetId, userId)).Do(nil)
}

func (c *client) removeAssignee(datasetId, userId string) error {
	return c.Delete(fmt.Sprintf("/dataset/%v/assignees/%v", datasetId, userId)).Do(nil)
}

func (c *client) search(query, field string, page, pageSize int) (search.Result, error) {
	params := url.Values{}
	params.Set("query", query)
	if field != "" {
		params.Set("field", field)
	}
	params.Set("page", fmt.Sprint(page))
	params.Set("page_size", fmt.Sprint(pageSize))

	var res search.Result
	err := c.Get("/search/?" + params.Encode()).Do(&res)
	return res, err
}

func (c *client) detail(entryId string) (search.Detail, error) {
	var res search.Detail
	err := c.Get(fmt.Sprintf("/search/detail/%v", entryId)).Do(&res)
	return res, err
}

func (c *client) quotaReport() (quota.Report, error) {
	var res quota.Report
	err := c.Get("/quota/").Do(&res)
	return res, err
}

func (c *client) quotaReportFor(userId string) (quota.Report, error) {
	var res quota.Report
	err := c.Get(fmt.Sprintf("/quota/%v", userId)).Do(&res)
	return res, err
}

func (c *client) setStorageLimit(userId string, ceiling int64, description string) error {
	body := map[string]interface{}{
		"user_id": userId, "record_ceiling": ceiling, "description": description,
	}
	return c.Post("/quota/limit").Json(body).Do(nil)
}

func (c *client) deactivateStorageLimit(userId string) error {
	return c.Delete(fmt.Sprintf("/quota/limit/%v", userId)).Do(nil)
}

func (c *client) setRoleDefault(role string, ceiling int64) error {
	body := map[string]interface{}{"role": role, "record_ceiling": ceiling}
	return c.Post("/quota/role-default").Json(body).Do(nil)
}
