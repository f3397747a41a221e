package provider

// Metadata is the OpenID Provider configuration served at
// /.well-known/openid-configuration.
type Metadata struct {
	Issuer                           string   `json:"issuer"`
	AuthorizationEndpoint            string   `json:"authorization_endpoint"`
	TokenEndpoint                    string   `json:"token_endpoint"`
	UserinfoEndpoint                 string   `json:"userinfo_endpoint"`
	JwksURI                          string   `json:"jwks_uri"`
	ResponseTypesSupported           []string `json:"response_types_supported"`
	GrantTypesSupported              []string `json:"grant_types_supported"`
	SubjectTypesSupported            []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported []string `json:"id_token_signing_alg_values_supported"`
	ScopesSupported                  []string `json:"scopes_supported"`
	TokenEndpointAuthMethods         []string `json:"token_endpoint_auth_methods_supported"`
}

func NewMetadata(issuer string) *Metadata {
	return &Metadata{
		Issuer:                issuer,
		AuthorizationEndpoint: issuer + "/dialog/auth",
		TokenEndpoint:         issuer + "/oauth/token",
		UserinfoEndpoint:      issuer + "/api/userinfo",
		JwksURI:               issuer + "/.well-known/jwks.json",
		ResponseTypesSupported: []string{
			"code",
			"token",
			"id_token",
			"code id_token",
			"code token",
			"id_token token",
			"code id_token token",
		},
		GrantTypesSupported: []string{
			"authorization_code",
			"password",
			"client_credentials",
			"implicit",
		},
		SubjectTypesSupported:            []string{"public"},
		IDTokenSigningAlgValuesSupported: []string{"RS256"},
		ScopesSupported:                  []string{"openid", "profile"},
		TokenEndpointAuthMethods:         []string{"client_secret_basic", "client_secret_post"},
	}
}
