package ldap

import "fmt"

// ResultCode is an LDAP result code per RFC 4511 Section 4.1.9.
type ResultCode int

const (
	ResultSuccess                      ResultCode = 0
	ResultOperationsError              ResultCode = 1
	ResultProtocolError                ResultCode = 2
	ResultTimeLimitExceeded            ResultCode = 3
	ResultSizeLimitExceeded            ResultCode = 4
	ResultCompareFalse                 ResultCode = 5
	ResultCompareTrue                  ResultCode = 6
	ResultAuthMethodNotSupported       ResultCode = 7
	ResultStrongerAuthRequired         ResultCode = 8
	ResultReferral                     ResultCode = 10
	ResultAdminLimitExceeded           ResultCode = 11
	ResultUnavailableCriticalExtension ResultCode = 12
	ResultConfidentialityRequired      ResultCode = 13
	ResultNoSuchAttribute              ResultCode = 16
	ResultInappropriateMatching        ResultCode = 18
	ResultConstraintViolation          ResultCode = 19
	ResultNoSuchObject                 ResultCode = 32
	ResultInvalidDNSyntax              ResultCode = 34
	ResultInappropriateAuthentication  ResultCode = 48
	ResultInvalidCredentials           ResultCode = 49
	ResultInsufficientAccessRights     ResultCode = 50
	ResultBusy                         ResultCode = 51
	ResultUnavailable                  ResultCode = 52
	ResultUnwillingToPerform           ResultCode = 53
	ResultOther                        ResultCode = 80
)

var resultCodeNames = map[ResultCode]string{
	ResultSuccess:                      "Success",
	ResultOperationsError:              "OperationsError",
	ResultProtocolError:                "ProtocolError",
	ResultTimeLimitExceeded:            "TimeLimitExceeded",
	ResultSizeLimitExceeded:            "SizeLimitExceeded",
	ResultCompareFalse:                 "CompareFalse",
	ResultCompareTrue:                  "CompareTrue",
	ResultAuthMethodNotSupported:       "AuthMethodNotSupported",
	ResultStrongerAuthRequired:         "StrongerAuthRequired",
	ResultReferral:                     "Referral",
	ResultAdminLimitExceeded:           "AdminLimitExceeded",
	ResultUnavailableCriticalExtension: "UnavailableCriticalExtension",
	ResultConfidentialityRequired:      "ConfidentialityRequired",
	ResultNoSuchAttribute:              "NoSuchAttribute",
	ResultInappropriateMatching:        "InappropriateMatching",
	ResultConstraintViolation:          "ConstraintViolation",
	ResultNoSuchObject:                 "NoSuchObject",
	ResultInvalidDNSyntax:              "InvalidDNSyntax",
	ResultInappropriateAuthentication:  "InappropriateAuthentication",
	ResultInvalidCredentials:           "InvalidCredentials",
	ResultInsufficientAccessRights:     "InsufficientAccessRights",
	ResultBusy:                         "Busy",
	ResultUnavailable:                  "Unavailable",
	ResultUnwillingToPerform:           "UnwillingToPerform",
	ResultOther:                        "Other",
}

// String returns the symbolic name of the result code.
func (r ResultCode) String() string {
	if name, ok := resultCodeNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", int(r))
}

// IsSuccess reports whether the code indicates a successful operation.
// CompareTrue and CompareFalse are successful compare outcomes.
func (r ResultCode) IsSuccess() bool {
	return r == ResultSuccess || r == ResultCompareTrue || r == ResultCompareFalse
}
