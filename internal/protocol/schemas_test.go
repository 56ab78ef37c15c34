package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	joinSchema := compile("join.schema.json")
	welcomeSchema := compile("welcome.schema.json")
	steerSchema := compile("steer.schema.json")
	stateSchema := compile("state.schema.json")
	resultSchema := compile("result.schema.json")
	errorSchema := compile("error.schema.json")

	var join any
	_ = json.Unmarshal([]byte(`{
	  "type":"JOIN",
	  "protocol_version":"1.0",
	  "name":"viper",
	  "skin_id":"neon-03",
	  "credential":"tok-8f2a"
	}`), &join)
	validate(joinSchema, join)

	var welcome any
	_ = json.Unmarshal([]byte(`{
	  "type":"WELCOME",
	  "protocol_version":"1.0",
	  "agent_id":"S1",
	  "match_id":"6f1c0f6e-72a1-4b8e-9c38-0d6f4c8c9a11",
	  "slot_id":"main",
	  "color":"#e6194b",
	  "arena":{
	    "width":2000,
	    "height":2000,
	    "tick_rate_hz":20,
	    "wall_margin":50,
	    "head_radius":10,
	    "body_radius":8,
	    "pellet_radius":5
	  }
	}`), &welcome)
	validate(welcomeSchema, welcome)

	var steer any
	_ = json.Unmarshal([]byte(`{
	  "type":"STEER",
	  "protocol_version":"1.0",
	  "ref":"s12",
	  "delta_deg":-15.5
	}`), &steer)
	validate(steerSchema, steer)

	var state any
	_ = json.Unmarshal([]byte(`{
	  "type":"STATE",
	  "protocol_version":"1.0",
	  "match_id":"6f1c0f6e-72a1-4b8e-9c38-0d6f4c8c9a11",
	  "phase":"ACTIVE",
	  "tick":420,
	  "you":"S1",
	  "remaining_ms":154000,
	  "snakes":[
	    {"id":"S1","name":"viper","color":"#e6194b","angle_deg":90,
	     "score":35,"alive":true,"segments":[[100.5,200.25],[100.5,192.25]]}
	  ],
	  "pellets":[{"id":"P9","pos":[512,740],"value":5}]
	}`), &state)
	validate(stateSchema, state)

	var result any
	_ = json.Unmarshal([]byte(`{
	  "type":"RESULT",
	  "protocol_version":"1.0",
	  "match_id":"6f1c0f6e-72a1-4b8e-9c38-0d6f4c8c9a11",
	  "slot_id":"main",
	  "reason":"LAST_SURVIVOR",
	  "winner_id":"S1",
	  "duration_ticks":900,
	  "ranking":[
	    {"rank":1,"agent_id":"S1","name":"viper","score":35,
	     "survival_ticks":900,"display_survival_ms":45750,"alive":true},
	    {"rank":2,"agent_id":"S2","name":"adder","score":60,
	     "survival_ticks":512,"display_survival_ms":25600,"alive":false,
	     "killed_by":"S1"}
	  ]
	}`), &result)
	validate(resultSchema, result)

	var errMsg any
	_ = json.Unmarshal([]byte(`{
	  "type":"ERROR",
	  "protocol_version":"1.0",
	  "code":"E_LOBBY_FULL",
	  "message":"lobby is full"
	}`), &errMsg)
	validate(errorSchema, errMsg)
}
