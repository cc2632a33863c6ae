package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/notamil/backend/core/essay"
)

func submitEssay(t *testing.T, token string, kind essay.Kind) essay.Essay {
	t.Helper()
	body := marchallObj(t, SubmitRequest{
		Theme: "Desafios da educação no Brasil",
		Body:  "Lorem ipsum dolor sit amet.",
		Kind:  kind,
	})
	req, rec := newAuthRequest(http.MethodPost, "/v1/essays", token, body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("submitEssay() code = %d (body: %s)", rec.Code, rec.Body.String())
	}
	return decodeEssay(t, rec)
}

func assignCorrectors(t *testing.T, essayID string, correctors ...string) essay.Essay {
	t.Helper()
	body := marchallObj(t, essay.Assignment{Correctors: correctors})
	req, rec := newAuthRequest(http.MethodPost, "/v1/essays/"+essayID+"/assign", adminToken(t), body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("assignCorrectors() code = %d (body: %s)", rec.Code, rec.Body.String())
	}
	return decodeEssay(t, rec)
}

func gradeSlot(t *testing.T, token, essayID string, slotIdx int, scores []int) *essay.Essay {
	t.Helper()
	body := marchallObj(t, GradeRequest{SlotIndex: slotIdx, Scores: scores, Note: "Bom trabalho"})
	req, rec := newAuthRequest(http.MethodPost, "/v1/essays/"+essayID+"/grade", token, body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("gradeSlot() code = %d (body: %s)", rec.Code, rec.Body.String())
	}
	e := decodeEssay(t, rec)
	return &e
}

func Test_essayApi_submit(t *testing.T) {
	std := enrollStudent(t, "submit@test.br", 3)
	token := studentToken(t, std)

	tests := []httpTest{
		{
			name: "Auth required", path: "/v1/essays", wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "Student required", path: "/v1/essays", token: correctorToken(t, "c@test.br"),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "missing fields", path: "/v1/essays", token: token,
			body:     marchallObj(t, SubmitRequest{Kind: essay.KindRegular}),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "invalid kind", path: "/v1/essays", token: token,
			body:     marchallObj(t, SubmitRequest{Theme: "Tema", Body: "Corpo.", Kind: "sonnet"}),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "ok", path: "/v1/essays", token: token,
			body:     marchallObj(t, SubmitRequest{Theme: "Tema", Body: "Corpo.", Kind: essay.KindRegular}),
			wantCode: http.StatusCreated,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			tt.method = http.MethodPost
			checkCodeAndData(t, tt, rec)
		})
	}

	// the successful submission debited 1 credit
	refreshed, err := stdSvc.GetByID(context.Background(), std.ID)
	if err != nil {
		t.Fatalf("GetByID(): %v", err)
	}
	if refreshed.Balance != 2 {
		t.Errorf("Balance = %d, want 2", refreshed.Balance)
	}
}

func Test_essayApi_submit_insufficientCredits(t *testing.T) {
	std := enrollStudent(t, "broke@test.br", 1)

	body := marchallObj(t, SubmitRequest{Theme: "Tema", Body: "Corpo.", Kind: essay.KindSimulado}) // costs 2
	req, rec := newAuthRequest(http.MethodPost, "/v1/essays", studentToken(t, std), body)
	app.ServeHTTP(rec, req)

	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, httpErr{Error: "insufficient credits"}),
	}, rec)
}

func Test_essayApi_gradeLifecycle(t *testing.T) {
	std := enrollStudent(t, "lifecycle@test.br", 5)
	registerCorrector(t, "lc1@test.br")
	registerCorrector(t, "lc2@test.br")

	e := submitEssay(t, studentToken(t, std), essay.KindRegular)
	e = assignCorrectors(t, e.ID, "lc1@test.br", "lc2@test.br")
	if e.Mode != essay.ModeDual {
		t.Fatalf("Mode = %s, want %s", e.Mode, essay.ModeDual)
	}

	// the other corrector cannot write this slot
	body := marchallObj(t, GradeRequest{SlotIndex: 1, Scores: []int{100, 100, 100, 100, 100}})
	req, rec := newAuthRequest(http.MethodPost, "/v1/essays/"+e.ID+"/grade", correctorToken(t, "lc2@test.br"), body)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusForbidden,
		wantData: marchallObj(t, httpErr{Error: "permission denied"}),
	}, rec)

	got := gradeSlot(t, correctorToken(t, "lc1@test.br"), e.ID, 1, []int{171, 170, 170, 170, 170}) // 851
	if got.Status != essay.StatusAwaitingCorrection {
		t.Fatalf("Status = %s after first slot, want %s", got.Status, essay.StatusAwaitingCorrection)
	}

	got = gradeSlot(t, correctorToken(t, "lc2@test.br"), e.ID, 2, []int{180, 180, 180, 180, 180}) // 900
	if got.Status != essay.StatusGraded {
		t.Fatalf("Status = %s, want %s", got.Status, essay.StatusGraded)
	}
	if !got.FinalScore.Valid || got.FinalScore.Int != 876 {
		t.Errorf("FinalScore = %+v, want 876", got.FinalScore)
	}

	// the owner sees the result
	req, rec = newAuthRequest(http.MethodGet, "/v1/essays/"+e.ID, studentToken(t, std))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("retrieve code = %d", rec.Code)
	}
	if got := decodeEssay(t, rec); got.FinalScore.Int != 876 {
		t.Errorf("FinalScore = %d, want 876", got.FinalScore.Int)
	}
}

func Test_essayApi_retrievePermissions(t *testing.T) {
	std := enrollStudent(t, "owner@test.br", 5)
	other := enrollStudent(t, "nosy@test.br", 5)
	registerCorrector(t, "rc1@test.br")

	e := submitEssay(t, studentToken(t, std), essay.KindRegular)
	assignCorrectors(t, e.ID, "rc1@test.br")

	tests := []httpTest{
		{name: "owner", token: studentToken(t, std), wantCode: http.StatusOK},
		{name: "assigned corrector", token: correctorToken(t, "rc1@test.br"), wantCode: http.StatusOK},
		{name: "admin", token: adminToken(t), wantCode: http.StatusOK},
		{
			name: "other student", token: studentToken(t, other), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "unassigned corrector", token: correctorToken(t, "rc2@test.br"), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/essays/"+e.ID, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_essayApi_returnFlow(t *testing.T) {
	std := enrollStudent(t, "returned@test.br", 5)
	token := studentToken(t, std)
	registerCorrector(t, "ret1@test.br")

	e := submitEssay(t, token, essay.KindRegular)
	assignCorrectors(t, e.ID, "ret1@test.br")

	// corrector returns the essay ungraded
	body := marchallObj(t, ReturnRequest{Justification: "fuga completa do tema"})
	req, rec := newAuthRequest(http.MethodPost, "/v1/essays/"+e.ID+"/return", correctorToken(t, "ret1@test.br"), body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("return code = %d (body: %s)", rec.Code, rec.Body.String())
	}
	if got := decodeEssay(t, rec); got.Status != essay.StatusReturned {
		t.Fatalf("Status = %s, want %s", got.Status, essay.StatusReturned)
	}

	// owner acknowledges
	req, rec = newAuthRequest(http.MethodPost, "/v1/essays/"+e.ID+"/acknowledge", token)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, OkResponse{Ok: true})}, rec)

	// owner resubmits at no extra cost
	body = marchallObj(t, ResubmitRequest{Body: "Novo corpo, muito melhor."})
	req, rec = newAuthRequest(http.MethodPost, "/v1/essays/"+e.ID+"/resubmit", token, body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("resubmit code = %d (body: %s)", rec.Code, rec.Body.String())
	}
	got := decodeEssay(t, rec)
	if got.Status != essay.StatusAwaitingCorrection {
		t.Errorf("Status = %s, want %s", got.Status, essay.StatusAwaitingCorrection)
	}
	if got.Slots[0].Corrector != "ret1@test.br" {
		t.Errorf("Slots[0].Corrector = %q, want ret1@test.br", got.Slots[0].Corrector)
	}

	refreshed, err := stdSvc.GetByID(context.Background(), std.ID)
	if err != nil {
		t.Fatalf("GetByID(): %v", err)
	}
	if refreshed.Balance != 4 { // only the original submission was charged
		t.Errorf("Balance = %d, want 4", refreshed.Balance)
	}
}

func Test_essayApi_cancel(t *testing.T) {
	std := enrollStudent(t, "cancel@test.br", 5)
	token := studentToken(t, std)

	e := submitEssay(t, token, essay.KindSimulado) // costs 2

	req, rec := newAuthRequest(http.MethodDelete, "/v1/essays/"+e.ID, token)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusOK,
		wantData: marchallObj(t, CancelResponse{RefundedCredits: 2}),
	}, rec)

	// essay is gone
	req, rec = newAuthRequest(http.MethodGet, "/v1/essays/"+e.ID, token)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("retrieve after cancel code = %d, want 404", rec.Code)
	}

	refreshed, err := stdSvc.GetByID(context.Background(), std.ID)
	if err != nil {
		t.Fatalf("GetByID(): %v", err)
	}
	if refreshed.Balance != 5 {
		t.Errorf("Balance = %d, want 5", refreshed.Balance)
	}
}

func Test_essayApi_cancelBlockedOnceGraded(t *testing.T) {
	std := enrollStudent(t, "keeper@test.br", 5)
	token := studentToken(t, std)
	registerCorrector(t, "kc1@test.br")

	e := submitEssay(t, token, essay.KindRegular)
	assignCorrectors(t, e.ID, "kc1@test.br")
	gradeSlot(t, correctorToken(t, "kc1@test.br"), e.ID, 1, []int{100, 100, 100, 100, 100})

	req, rec := newAuthRequest(http.MethodDelete, "/v1/essays/"+e.ID, token)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Errorf("cancel code = %d, want 409 (body: %s)", rec.Code, rec.Body.String())
	}
}

func Test_essayApi_query(t *testing.T) {
	std := enrollStudent(t, "lister@test.br", 5)
	token := studentToken(t, std)

	submitEssay(t, token, essay.KindRegular)
	submitEssay(t, token, essay.KindExercicio)

	req, rec := newAuthRequest(http.MethodGet, "/v1/essays", token)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("query code = %d", rec.Code)
	}
	var essays []essay.Essay
	if err := json.Unmarshal(rec.Body.Bytes(), &essays); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(essays) != 2 {
		t.Errorf("got %d essays, want 2", len(essays))
	}
	for _, e := range essays {
		if e.OwnerEmail != "lister@test.br" {
			t.Errorf("OwnerEmail = %q", e.OwnerEmail)
		}
	}
	// newest first by default
	if !essays[0].SubmittedAt.After(essays[1].SubmittedAt) {
		t.Error("essays not ordered newest first")
	}

	req, rec = newAuthRequest(http.MethodGet, "/v1/essays?ordering=submitted_at", token)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("ordered query code = %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &essays); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(essays) != 2 || !essays[0].SubmittedAt.Before(essays[1].SubmittedAt) {
		t.Error("ascending ordering not honored")
	}
}

func Test_essayApi_registerCorrector(t *testing.T) {
	body := marchallObj(t, CorrectorRequest{Email: "new@test.br", Name: "Novo", AcceptsTyped: true})

	// admin only
	req, rec := newAuthRequest(http.MethodPost, "/v1/correctors", correctorToken(t, "new@test.br"), body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("code = %d, want 403", rec.Code)
	}

	req, rec = newAuthRequest(http.MethodPost, "/v1/correctors", adminToken(t), body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("code = %d, want 201 (body: %s)", rec.Code, rec.Body.String())
	}
	var c essay.Corrector
	if err := json.Unmarshal(rec.Body.Bytes(), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if c.Email != "new@test.br" || !c.AcceptsTyped {
		t.Errorf("unexpected corrector: %+v", c)
	}
}
