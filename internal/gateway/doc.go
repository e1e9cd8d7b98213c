// Package gateway implements the transform/proxy pipeline.
//
// A gateway request names a configured target:
//
//	/gateway/{target}/{rest...}
//	/gateway/test/{test-path...}/as/{target}/{rest...}
//
// The pipeline runs ReceiveRequest, ApplyRequestTransform, then either a
// direct response or InvokeTarget, then ResolveRedirects and
// ApplyResponseTransform. Target invocation is always an internal
// dispatch; nothing leaves the process. The test form invokes
// /{test-path...}/{rest...} instead of the target's configured path but
// applies the named target's transforms.
//
// Configuration is read per request from the owner's "gateways" variable,
// a JSON-with-comments object keyed by target name:
//
//	{
//	  // wraps the weather definition
//	  "weather": {
//	    "target": "/forecast",
//	    "request": "<transform address>",
//	    "response": "<transform address>",
//	    "templates": {"page": "<template address>"}
//	  }
//	}
package gateway
