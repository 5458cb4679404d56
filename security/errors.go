package security

import "fmt"

// CertificateError reports a keystore that could not be decoded, a wrong
// password, a missing private key, or an unparsable subject common name.
// It is fatal at startup: without a valid identity nothing can proceed.
type CertificateError struct {
	Path string
	Err  error
}

func (e *CertificateError) Error() string {
	return fmt.Sprintf("certificate error (%s): %v", e.Path, e.Err)
}

func (e *CertificateError) Unwrap() error { return e.Err }

// TrustError reports a truststore that could not be read or that contained
// no usable certificates.
type TrustError struct {
	Path string
	Err  error
}

func (e *TrustError) Error() string {
	return fmt.Sprintf("trust error (%s): %v", e.Path, e.Err)
}

func (e *TrustError) Unwrap() error { return e.Err }
