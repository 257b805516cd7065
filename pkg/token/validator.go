package token

// Principal is the verified identity attached to a request after successful
// validation. It lives only for the duration of pipeline processing.
type Principal struct {
	UserID   int64
	Username string
	Role     string
}

// Validator projects a bearer token string into a Principal. No I/O: the
// result depends only on the raw token, the current time and the codec.
type Validator struct {
	codec *Codec
}

func NewValidator(codec *Codec) *Validator {
	return &Validator{codec: codec}
}

// Validate decodes the token and, on success, returns the Principal it
// encodes. On failure it returns one of the codec's error kinds.
func (v *Validator) Validate(raw string) (Principal, error) {
	cl, err := v.codec.Decode(raw)
	if err != nil {
		return Principal{}, err
	}
	return Principal{UserID: cl.SubjectID, Username: cl.Username, Role: cl.Role}, nil
}
