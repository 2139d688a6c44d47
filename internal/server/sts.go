package server

import (
	"encoding/xml"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nicholasgasior/efsim/internal/apierr"
	"github.com/nicholasgasior/efsim/internal/identity"
)

const (
	stsVersion   = STSAPIVersion
	stsNamespace = "https://sts.amazonaws.com/doc/" + STSAPIVersion + "/"
)

type getCallerIdentityResponse struct {
	XMLName   xml.Name                `xml:"GetCallerIdentityResponse"`
	Xmlns     string                  `xml:"xmlns,attr"`
	Result    getCallerIdentityResult `xml:"GetCallerIdentityResult"`
	RequestID string                  `xml:"ResponseMetadata>RequestId"`
}

type getCallerIdentityResult struct {
	Arn     string `xml:"Arn"`
	UserID  string `xml:"UserId"`
	Account string `xml:"Account"`
}

type stsErrorResponse struct {
	XMLName   xml.Name `xml:"ErrorResponse"`
	Xmlns     string   `xml:"xmlns,attr"`
	Error     stsError `xml:"Error"`
	RequestID string   `xml:"RequestId"`
}

type stsError struct {
	Type    string `xml:"Type"`
	Code    string `xml:"Code"`
	Message string `xml:"Message"`
}

// isSTSRequest tells STS and EC2 query requests apart. Both POST to "/";
// STS is recognised by its API version or by the SigV4 credential scope.
func isSTSRequest(c *gin.Context, q query) bool {
	if q.get("Version") == stsVersion {
		return true
	}
	cred, ok := identity.ParseAuthorization(c.GetHeader("Authorization"))
	return ok && cred.Service == serviceSTS
}

// handleSTS answers GetCallerIdentity. The caller is derived from the
// access key in the request signature; the signature itself is not checked.
func (s *Server) handleSTS(c *gin.Context, q query) {
	action := q.get("Action")
	cl := s.begin(c, serviceSTS, action)

	if action != "GetCallerIdentity" {
		err := apierr.New(http.StatusBadRequest, "InvalidAction",
			"Could not find operation %s for version %s", action, q.get("Version"))
		s.finish(cl, "", err)
		c.XML(http.StatusBadRequest, stsErrorResponse{
			Xmlns:     stsNamespace,
			Error:     stsError{Type: "Sender", Code: err.Code, Message: err.Message},
			RequestID: cl.requestID,
		})
		return
	}

	s.finish(cl, "", nil)
	c.XML(http.StatusOK, getCallerIdentityResponse{
		Xmlns: stsNamespace,
		Result: getCallerIdentityResult{
			Arn:     cl.caller.ARN,
			UserID:  cl.caller.UserID,
			Account: cl.caller.AccountID,
		},
		RequestID: cl.requestID,
	})
}
