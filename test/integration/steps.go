package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/cucumber/godog"

	"github.com/doodlesbykumbi/msl-wiretap/pkg/slosilo"
	"github.com/doodlesbykumbi/msl-wiretap/pkg/tokens"
	"github.com/doodlesbykumbi/msl-wiretap/pkg/tokens/tokentest"
)

// StepsContext holds state shared between step definitions
type StepsContext struct {
	tc           *TestContext
	server       *ServerInstance
	issuers      map[string]*slosilo.CryptoContext
	masterToken  *tokentest.Builder
	keyResponse  *tokentest.Builder
	userIDToken  *tokentest.Builder
	errorData    tokens.Tree
	response     *http.Response
	responseBody []byte
}

// NewStepsContext creates a new steps context
func NewStepsContext(tc *TestContext) *StepsContext {
	return &StepsContext{
		tc:      tc,
		issuers: make(map[string]*slosilo.CryptoContext),
	}
}

// RegisterSteps registers all step definitions
func (s *StepsContext) RegisterSteps(sc *godog.ScenarioContext) {
	// Background steps
	sc.Step(`^a wiretap server is running with key "([^"]*)"$`, s.aWiretapServerIsRunning)
	sc.Step(`^a wiretap server requiring verified tokens is running with key "([^"]*)"$`, s.aWiretapServerRequiringVerifiedTokens)

	// Token steps
	sc.Step(`^a master token issued by "([^"]*)" with:$`, s.aMasterTokenIssuedBy)
	sc.Step(`^a key response master token issued by "([^"]*)" with:$`, s.aKeyResponseMasterTokenIssuedBy)
	sc.Step(`^a user ID token issued by "([^"]*)" with:$`, s.aUserIDTokenIssuedBy)
	sc.Step(`^its session data is:$`, s.itsSessionDataIs)
	sc.Step(`^its user data is:$`, s.itsUserDataIs)
	sc.Step(`^its signature is corrupted$`, s.itsSignatureIsCorrupted)
	sc.Step(`^an error header with:$`, s.anErrorHeaderWith)

	// Request steps
	sc.Step(`^I decode the master token$`, s.iDecodeTheMasterToken)
	sc.Step(`^I decode the user ID token$`, s.iDecodeTheUserIDToken)
	sc.Step(`^I inspect the message header$`, s.iInspectTheMessageHeader)
	sc.Step(`^I post to "([^"]*)":$`, s.iPostTo)

	// Response steps
	sc.Step(`^the response status should be (\d+)$`, s.theResponseStatusShouldBe)
	sc.Step(`^the error should be "([^"]*)" "([^"]*)"$`, s.theErrorShouldBe)
	sc.Step(`^the error field should be "([^"]*)"$`, s.theErrorFieldShouldBe)
	sc.Step(`^the response field "([^"]*)" should be (.+)$`, s.theResponseFieldShouldBe)
	sc.Step(`^the response should not have field "([^"]*)"$`, s.theResponseShouldNotHaveField)

	sc.After(func(ctx context.Context, _ *godog.Scenario, err error) (context.Context, error) {
		if s.server != nil {
			s.server.Stop()
		}
		return ctx, err
	})
}

// Background steps

func (s *StepsContext) aWiretapServerIsRunning(keyID string) error {
	return s.startServer(ServerConfig{KeyID: keyID})
}

func (s *StepsContext) aWiretapServerRequiringVerifiedTokens(keyID string) error {
	return s.startServer(ServerConfig{KeyID: keyID, RequireVerified: true})
}

func (s *StepsContext) startServer(cfg ServerConfig) error {
	instance, err := StartServer(s.tc, cfg)
	if err != nil {
		return err
	}
	s.server = instance
	return nil
}

// Token steps

// issuer returns the crypto context of a stored entity, or a fresh
// context for entities the keystore does not know.
func (s *StepsContext) issuer(id string) (*slosilo.CryptoContext, error) {
	if ctx, ok := s.issuers[id]; ok {
		return ctx, nil
	}

	ctx, err := s.tc.KeyStore.CryptoContext(id)
	if err != nil {
		keys, genErr := slosilo.GenerateSessionKeys()
		if genErr != nil {
			return nil, genErr
		}
		if ctx, err = slosilo.NewCryptoContext(id, keys); err != nil {
			return nil, err
		}
	}
	s.issuers[id] = ctx
	return ctx, nil
}

// tableValue reads integers as numbers and anything else as text.
func tableValue(v string) interface{} {
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n
	}
	return v
}

func applyTable(b *tokentest.Builder, table *godog.Table) *tokentest.Builder {
	for _, row := range table.Rows {
		if len(row.Cells) != 2 {
			continue
		}
		key, value := row.Cells[0].Value, row.Cells[1].Value
		if value == "<absent>" {
			b.Set(key, nil)
			continue
		}
		b.Set(key, tableValue(value))
	}
	return b
}

func (s *StepsContext) aMasterTokenIssuedBy(id string, table *godog.Table) error {
	ctx, err := s.issuer(id)
	if err != nil {
		return err
	}
	s.masterToken = applyTable(tokentest.MasterToken(ctx), table)
	return nil
}

func (s *StepsContext) aKeyResponseMasterTokenIssuedBy(id string, table *godog.Table) error {
	ctx, err := s.issuer(id)
	if err != nil {
		return err
	}
	s.keyResponse = applyTable(tokentest.MasterToken(ctx), table)
	return nil
}

func (s *StepsContext) aUserIDTokenIssuedBy(id string, table *godog.Table) error {
	ctx, err := s.issuer(id)
	if err != nil {
		return err
	}
	s.userIDToken = applyTable(tokentest.UserIDToken(ctx), table)
	return nil
}

func parseDocTree(doc *godog.DocString) (tokens.Tree, error) {
	return tokens.JSONCodec{}.Decode([]byte(doc.Content))
}

func (s *StepsContext) itsSessionDataIs(doc *godog.DocString) error {
	if s.masterToken == nil {
		return fmt.Errorf("no master token")
	}
	payload, err := parseDocTree(doc)
	if err != nil {
		return err
	}
	s.masterToken.Payload(payload)
	return nil
}

func (s *StepsContext) itsUserDataIs(doc *godog.DocString) error {
	if s.userIDToken == nil {
		return fmt.Errorf("no user ID token")
	}
	payload, err := parseDocTree(doc)
	if err != nil {
		return err
	}
	s.userIDToken.Payload(payload)
	return nil
}

// itsSignatureIsCorrupted applies to the most recently described token.
func (s *StepsContext) itsSignatureIsCorrupted() error {
	switch {
	case s.userIDToken != nil:
		s.userIDToken.CorruptSignature()
	case s.masterToken != nil:
		s.masterToken.CorruptSignature()
	default:
		return fmt.Errorf("no token")
	}
	return nil
}

func (s *StepsContext) anErrorHeaderWith(table *godog.Table) error {
	s.errorData = tokens.Tree{}
	for _, row := range table.Rows {
		s.errorData[row.Cells[0].Value] = tableValue(row.Cells[1].Value)
	}
	return nil
}

// Request steps

func (s *StepsContext) post(path string, body []byte) error {
	if s.server == nil {
		return fmt.Errorf("no server running")
	}

	resp, err := s.tc.HTTPClient.Post(s.server.ServerURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	s.response = resp
	s.responseBody, err = io.ReadAll(resp.Body)
	return err
}

func (s *StepsContext) postTree(path string, tree tokens.Tree) error {
	body, err := tokens.JSONCodec{}.Encode(tree)
	if err != nil {
		return err
	}
	return s.post(path, body)
}

func (s *StepsContext) iDecodeTheMasterToken() error {
	if s.masterToken == nil {
		return fmt.Errorf("no master token")
	}
	body, err := s.masterToken.Bytes()
	if err != nil {
		return err
	}
	return s.post("/mastertoken", body)
}

func (s *StepsContext) iDecodeTheUserIDToken() error {
	if s.masterToken == nil || s.userIDToken == nil {
		return fmt.Errorf("a master token and a user ID token are required")
	}
	mt, err := s.masterToken.Wire()
	if err != nil {
		return err
	}
	uit, err := s.userIDToken.Wire()
	if err != nil {
		return err
	}
	return s.postTree("/useridtoken", tokens.Tree{"mastertoken": mt, "useridtoken": uit})
}

func (s *StepsContext) iInspectTheMessageHeader() error {
	header := tokens.Tree{}
	headerData := tokens.Tree{"messageid": 1}

	if s.errorData != nil {
		header["errordata"] = s.errorData
	}
	if s.masterToken != nil {
		mt, err := s.masterToken.Wire()
		if err != nil {
			return err
		}
		header["mastertoken"] = mt
	}
	if s.keyResponse != nil {
		mt, err := s.keyResponse.Wire()
		if err != nil {
			return err
		}
		headerData["keyresponsedata"] = tokens.Tree{"mastertoken": mt}
	}
	if s.userIDToken != nil {
		uit, err := s.userIDToken.Wire()
		if err != nil {
			return err
		}
		headerData["useridtoken"] = uit
	}
	header["headerdata"] = headerData

	return s.postTree("/inspect", header)
}

func (s *StepsContext) iPostTo(path string, doc *godog.DocString) error {
	return s.post(path, []byte(doc.Content))
}

// Response steps

func (s *StepsContext) theResponseStatusShouldBe(expected int) error {
	if s.response == nil {
		return fmt.Errorf("no response")
	}
	if s.response.StatusCode != expected {
		return fmt.Errorf("expected status %d, got %d: %s", expected, s.response.StatusCode, string(s.responseBody))
	}
	return nil
}

func (s *StepsContext) responseJSON() (map[string]interface{}, error) {
	var body map[string]interface{}
	if err := json.Unmarshal(s.responseBody, &body); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w: %s", err, string(s.responseBody))
	}
	return body, nil
}

// lookup follows a dotted path through the JSON response.
func (s *StepsContext) lookup(path string) (interface{}, bool, error) {
	body, err := s.responseJSON()
	if err != nil {
		return nil, false, err
	}

	var current interface{} = body
	for _, part := range strings.Split(path, ".") {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, false, nil
		}
		if current, ok = obj[part]; !ok {
			return nil, false, nil
		}
	}
	return current, true, nil
}

func (s *StepsContext) theErrorShouldBe(kind, code string) error {
	if err := s.theResponseFieldShouldBe("error.kind", strconv.Quote(kind)); err != nil {
		return err
	}
	return s.theResponseFieldShouldBe("error.code", strconv.Quote(code))
}

func (s *StepsContext) theErrorFieldShouldBe(field string) error {
	return s.theResponseFieldShouldBe("error.field", strconv.Quote(field))
}

func (s *StepsContext) theResponseFieldShouldBe(path, expectedJSON string) error {
	var expected interface{}
	if err := json.Unmarshal([]byte(expectedJSON), &expected); err != nil {
		return fmt.Errorf("expected value is not JSON: %s", expectedJSON)
	}

	actual, ok, err := s.lookup(path)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("response has no field %s: %s", path, string(s.responseBody))
	}
	if !reflect.DeepEqual(expected, actual) {
		return fmt.Errorf("expected %s to be %s, got %v", path, expectedJSON, actual)
	}
	return nil
}

func (s *StepsContext) theResponseShouldNotHaveField(path string) error {
	_, ok, err := s.lookup(path)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("response should not have field %s: %s", path, string(s.responseBody))
	}
	return nil
}
