// Package core contains the Arrowhead wire data model shared by the
// consumer and provider sides of the SDK.
//
// The JSON field names follow the Arrowhead 4.x core services
// (serviceregistry, orchestrator, authorization), so requests built from
// these types are accepted by a stock local cloud deployment.
package core
