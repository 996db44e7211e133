// Copyright 2026 The Editorlink Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSuccess_NilValue(t *testing.T) {
	data, err := json.Marshal(Success(nil))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got := string(data); got != `{"result":null}` {
		t.Fatalf("unexpected wire form: %s", got)
	}
}

func TestSuccess_Value(t *testing.T) {
	data, err := json.Marshal(Success(map[string]int{"x": 1}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got := string(data); got != `{"result":{"x":1}}` {
		t.Fatalf("unexpected wire form: %s", got)
	}
}

func TestSuccess_UnmarshalableValue(t *testing.T) {
	response := Success(make(chan int))
	if !response.IsError() {
		t.Fatal("expected an error response for an unmarshalable value")
	}
	if response.Err.Code != CodeInternalError {
		t.Fatalf("code = %s, want %s", response.Err.Code, CodeInternalError)
	}
}

func TestFailure_WireForm(t *testing.T) {
	data, err := json.Marshal(Failure(CodeTimeout, "host did not respond", nil))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got := string(data)
	if strings.Contains(got, "result") {
		t.Fatalf("error response must not carry a result key: %s", got)
	}
	if !strings.Contains(got, `"code":"TIMEOUT"`) {
		t.Fatalf("missing code: %s", got)
	}
}

func TestResponse_RoundTrip(t *testing.T) {
	original := Failure(CodeMethodNotFound, "no such method", []string{"ping"})
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Response
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !decoded.IsError() || decoded.Err.Code != CodeMethodNotFound {
		t.Fatalf("round trip lost the error: %+v", decoded)
	}
}

func TestResponse_RejectsBothKeys(t *testing.T) {
	var decoded Response
	err := json.Unmarshal([]byte(`{"result":1,"error":{"code":"X","message":"y"}}`), &decoded)
	if err == nil {
		t.Fatal("expected rejection of a response with both keys")
	}
}

func TestResponse_RejectsNeitherKey(t *testing.T) {
	var decoded Response
	err := json.Unmarshal([]byte(`{}`), &decoded)
	if err == nil {
		t.Fatal("expected rejection of a response with neither key")
	}
}

func TestResponse_NullResultIsSuccess(t *testing.T) {
	var decoded Response
	if err := json.Unmarshal([]byte(`{"result":null}`), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.IsError() {
		t.Fatal("null result must decode as success")
	}
}

func TestParseRequest_Malformed(t *testing.T) {
	if _, err := ParseRequest([]byte(`{"method": "ping"`)); err == nil {
		t.Fatal("expected decode error for truncated JSON")
	}
}

func TestParseRequest_OpaqueParams(t *testing.T) {
	request, err := ParseRequest([]byte(`{"method":"scene.load","params":{"path":"Assets/Main.scene"}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if request.Method != "scene.load" {
		t.Fatalf("method = %q", request.Method)
	}
	if string(request.Params) != `{"path":"Assets/Main.scene"}` {
		t.Fatalf("params not preserved verbatim: %s", request.Params)
	}
}
