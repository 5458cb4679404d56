// Package security loads a system's trust material (PKCS#12 keystore and
// PEM truststore) and turns it into mutual-TLS configurations for both the
// outbound client and the inbound listener role.
//
// No network I/O happens in this package; everything is derived from the
// files given to Load.
package security
