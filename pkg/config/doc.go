// Package config loads and validates capturelog configuration.
//
// A configuration file is YAML or JSON with comments (detected by
// extension) and is
// checked twice: structurally against the embedded JSON schema, then
// semantically (sink kinds, levels, filter expressions, glob and JSONPath
// patterns). A minimal file:
//
//	version: "1"
//	logging:
//	  level: info
//	capture:
//	  cookies: ["theme"]
//	  ignorePaths: ["/healthz"]
//	sinks:
//	  - name: daily
//	    type: file
//	    options:
//	      dir: ./logs
//	      timeFormat: "2006-01-02 15:04:05.000"
//	  - name: errors
//	    type: jsonl
//	    minLevel: warning
//	    when: 'web && status >= 500'
//	    options:
//	      path: ./errors.jsonl.gz
//	  - name: archive
//	    type: sqlite
//	    options:
//	      path: ./units.db
//	  - name: bus
//	    type: nats
//	    minStatusCode: 400
//	    options:
//	      url: nats://127.0.0.1:4222
//	      subject: capturelog.units
//	      encoding: cbor
//
// Environment variables prefixed CAPTURELOG_ override selected fields;
// see ApplyEnv.
package config
