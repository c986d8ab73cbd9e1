package synapse

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"github.com/labstack/echo/v4"
)

// testPlatform fakes enough of the platform REST surface for client
// tests.
type testPlatform struct {
	mutex       sync.Mutex
	srv         *httptest.Server
	submissions map[int64]Submission
	statuses    map[int64]SubmissionStatus
	evaluations map[int64]Evaluation
	profiles    map[int64]UserProfile
	projects    map[string]Project
	teams       map[int64]Team
	challenges  map[string]Challenge
	acls        map[string]AccessControl
	files       map[int64]string
	queryRows   []map[string]any
	messages    []messageForm
	copies      []string
	etagSeq     int
}

func newTestPlatform() *testPlatform {
	p := testPlatform{
		submissions: map[int64]Submission{},
		statuses:    map[int64]SubmissionStatus{},
		evaluations: map[int64]Evaluation{},
		profiles:    map[int64]UserProfile{},
		projects:    map[string]Project{},
		teams:       map[int64]Team{},
		challenges:  map[string]Challenge{},
		acls:        map[string]AccessControl{},
		files:       map[int64]string{},
	}
	srv := echo.New()
	srv.HideBanner, srv.HidePort = true, true
	srv.POST("/login", p.login)
	srv.GET("/evaluation/submission/query", p.query)
	srv.GET("/evaluation/submission/:id", p.getSubmission)
	srv.GET("/evaluation/submission/:id/file", p.getSubmissionFile)
	srv.GET("/evaluation/submission/:id/status", p.getStatus)
	srv.PUT("/evaluation/submission/:id/status", p.putStatus)
	srv.GET("/evaluation/:id", p.getEvaluation)
	srv.GET("/evaluation/:id/submission/bundle/all", p.getBundles)
	srv.GET("/userProfile/:id", p.getProfile)
	srv.GET("/team/:id", p.getTeam)
	srv.POST("/entity", p.createProject)
	srv.GET("/entity/:id", p.getProject)
	srv.DELETE("/entity/:id", p.deleteProject)
	srv.GET("/entity/:id/challenge", p.getChallenge)
	srv.POST("/entity/:id/copy", p.copyEntity)
	srv.PUT("/entity/:id/acl", p.putACL)
	srv.GET("/entity/:id/acl/:principal", p.getACL)
	srv.POST("/message", p.postMessage)
	p.srv = httptest.NewServer(srv)
	return &p
}

func (p *testPlatform) Close() {
	p.srv.Close()
}

func (p *testPlatform) URL() string {
	return p.srv.URL
}

func (p *testPlatform) nextEtag() string {
	p.etagSeq++
	return fmt.Sprintf("etag-%d", p.etagSeq)
}

func (p *testPlatform) addSubmission(
	submission Submission, status Status, file string,
) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.submissions[submission.ID] = submission
	p.statuses[submission.ID] = SubmissionStatus{
		ID:     submission.ID,
		Etag:   p.nextEtag(),
		Status: status,
	}
	if file != "" {
		p.files[submission.ID] = file
	}
}

func paramID(c echo.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}

func pageBounds(c echo.Context, total int) (int, int) {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 {
		limit = 20
	}
	offset, err := strconv.Atoi(c.QueryParam("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return offset, end
}

func (p *testPlatform) login(c echo.Context) error {
	var form loginForm
	if err := c.Bind(&form); err != nil {
		return err
	}
	if form.Password == "" {
		return c.JSON(http.StatusUnauthorized, Error{Reason: "invalid credentials"})
	}
	return c.JSON(http.StatusCreated, loginResponse{
		SessionToken: "token-" + form.Username,
	})
}

func (p *testPlatform) getSubmission(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	p.mutex.Lock()
	defer p.mutex.Unlock()
	submission, ok := p.submissions[id]
	if !ok {
		return c.JSON(http.StatusNotFound, Error{Reason: "submission not found"})
	}
	return c.JSON(http.StatusOK, submission)
}

func (p *testPlatform) getSubmissionFile(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	p.mutex.Lock()
	content, ok := p.files[id]
	p.mutex.Unlock()
	if !ok {
		return c.JSON(http.StatusNotFound, Error{Reason: "file not found"})
	}
	c.Response().Header().Set(
		"Content-Disposition",
		fmt.Sprintf(`attachment; filename="predictions-%d.csv"`, id),
	)
	return c.Blob(http.StatusOK, "text/csv", []byte(content))
}

func (p *testPlatform) getStatus(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	p.mutex.Lock()
	defer p.mutex.Unlock()
	status, ok := p.statuses[id]
	if !ok {
		return c.JSON(http.StatusNotFound, Error{Reason: "status not found"})
	}
	return c.JSON(http.StatusOK, status)
}

func (p *testPlatform) putStatus(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var status SubmissionStatus
	if err := c.Bind(&status); err != nil {
		return err
	}
	p.mutex.Lock()
	defer p.mutex.Unlock()
	stored, ok := p.statuses[id]
	if !ok {
		return c.JSON(http.StatusNotFound, Error{Reason: "status not found"})
	}
	if status.Etag != stored.Etag {
		return c.JSON(http.StatusPreconditionFailed, Error{Reason: "etag mismatch"})
	}
	status.ID = id
	status.Etag = p.nextEtag()
	p.statuses[id] = status
	return c.JSON(http.StatusOK, status)
}

func (p *testPlatform) getEvaluation(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	p.mutex.Lock()
	defer p.mutex.Unlock()
	evaluation, ok := p.evaluations[id]
	if !ok {
		return c.JSON(http.StatusNotFound, Error{Reason: "evaluation not found"})
	}
	return c.JSON(http.StatusOK, evaluation)
}

func (p *testPlatform) getBundles(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	status := Status(c.QueryParam("status"))
	p.mutex.Lock()
	defer p.mutex.Unlock()
	var matched []SubmissionBundle
	for subID, submission := range p.submissions {
		if submission.EvaluationID != id {
			continue
		}
		if subStatus := p.statuses[subID]; status == "" || subStatus.Status == status {
			matched = append(matched, SubmissionBundle{
				Submission: submission,
				Status:     p.statuses[subID],
			})
		}
	}
	// Map iteration order is random, keep pages stable.
	for i := 1; i < len(matched); i++ {
		for j := i; j > 0 && matched[j-1].Submission.ID > matched[j].Submission.ID; j-- {
			matched[j-1], matched[j] = matched[j], matched[j-1]
		}
	}
	begin, end := pageBounds(c, len(matched))
	return c.JSON(http.StatusOK, submissionBundlePage{
		Results: matched[begin:end],
		Total:   int64(len(matched)),
	})
}

func (p *testPlatform) query(c echo.Context) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	var headers []string
	for key := range p.queryHeadersUnion() {
		headers = append(headers, key)
	}
	for i := 1; i < len(headers); i++ {
		for j := i; j > 0 && headers[j-1] > headers[j]; j-- {
			headers[j-1], headers[j] = headers[j], headers[j-1]
		}
	}
	begin, end := pageBounds(c, len(p.queryRows))
	page := queryPage{
		Headers: headers,
		Total:   int64(len(p.queryRows)),
	}
	for _, row := range p.queryRows[begin:end] {
		values := make([]any, 0, len(headers))
		for _, header := range headers {
			values = append(values, row[header])
		}
		page.Rows = append(page.Rows, struct {
			Values []any `json:"values"`
		}{Values: values})
	}
	return c.JSON(http.StatusOK, page)
}

func (p *testPlatform) queryHeadersUnion() map[string]struct{} {
	keys := map[string]struct{}{}
	for _, row := range p.queryRows {
		for key := range row {
			keys[key] = struct{}{}
		}
	}
	return keys
}

func (p *testPlatform) getProfile(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	p.mutex.Lock()
	defer p.mutex.Unlock()
	profile, ok := p.profiles[id]
	if !ok {
		return c.JSON(http.StatusNotFound, Error{Reason: "profile not found"})
	}
	return c.JSON(http.StatusOK, profile)
}

func (p *testPlatform) createProject(c echo.Context) error {
	var form createProjectForm
	if err := c.Bind(&form); err != nil {
		return err
	}
	p.mutex.Lock()
	defer p.mutex.Unlock()
	project := Project{
		ID:   fmt.Sprintf("syn%d", 9000000+len(p.projects)),
		Name: form.Name,
		Etag: p.nextEtag(),
	}
	p.projects[project.ID] = project
	return c.JSON(http.StatusOK, project)
}

func (p *testPlatform) getProject(c echo.Context) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	project, ok := p.projects[c.Param("id")]
	if !ok {
		return c.JSON(http.StatusNotFound, Error{Reason: "entity not found"})
	}
	return c.JSON(http.StatusOK, project)
}

func (p *testPlatform) copyEntity(c echo.Context) error {
	var form copyEntityForm
	if err := c.Bind(&form); err != nil {
		return err
	}
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.copies = append(p.copies, c.Param("id")+"->"+form.DestinationID)
	return c.JSON(http.StatusOK, map[string]string{})
}

func (p *testPlatform) getTeam(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	p.mutex.Lock()
	defer p.mutex.Unlock()
	team, ok := p.teams[id]
	if !ok {
		return c.JSON(http.StatusNotFound, Error{Reason: "team not found"})
	}
	return c.JSON(http.StatusOK, team)
}

func (p *testPlatform) deleteProject(c echo.Context) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if _, ok := p.projects[c.Param("id")]; !ok {
		return c.JSON(http.StatusNotFound, Error{Reason: "entity not found"})
	}
	delete(p.projects, c.Param("id"))
	return c.JSON(http.StatusOK, map[string]string{})
}

func (p *testPlatform) getChallenge(c echo.Context) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	challenge, ok := p.challenges[c.Param("id")]
	if !ok {
		return c.JSON(http.StatusNotFound, Error{Reason: "challenge not found"})
	}
	return c.JSON(http.StatusOK, challenge)
}

func (p *testPlatform) putACL(c echo.Context) error {
	var acl AccessControl
	if err := c.Bind(&acl); err != nil {
		return err
	}
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.acls[c.Param("id")] = acl
	return c.JSON(http.StatusOK, acl)
}

func (p *testPlatform) getACL(c echo.Context) error {
	principal, err := strconv.ParseInt(c.Param("principal"), 10, 64)
	if err != nil {
		return err
	}
	p.mutex.Lock()
	defer p.mutex.Unlock()
	acl, ok := p.acls[c.Param("id")]
	if !ok || acl.PrincipalID != principal {
		return c.JSON(http.StatusNotFound, Error{Reason: "acl not found"})
	}
	return c.JSON(http.StatusOK, acl)
}

func (p *testPlatform) postMessage(c echo.Context) error {
	var form messageForm
	if err := c.Bind(&form); err != nil {
		return err
	}
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.messages = append(p.messages, form)
	return c.JSON(http.StatusOK, map[string]string{})
}
