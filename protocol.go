package jumpbridge

// Request kinds.
const (
	RequestImport          = "import"
	RequestInstall         = "install"
	RequestCall            = "call"
	RequestGet             = "get"
	RequestCreateInstance  = "create_instance"
	RequestCallMethod      = "call_method"
	RequestReleaseInstance = "release_instance"
	RequestModules         = "modules"
)

// Request is one inbound message. Only the fields relevant to Kind are set.
type Request struct {
	ID          string   `json:"id,omitempty" msgpack:"id,omitempty"`
	Kind        string   `json:"kind" msgpack:"kind"`
	Module      string   `json:"module,omitempty" msgpack:"module,omitempty"`
	AutoInstall *bool    `json:"auto_install,omitempty" msgpack:"auto_install,omitempty"`
	Package     string   `json:"package,omitempty" msgpack:"package,omitempty"`
	Function    string   `json:"function,omitempty" msgpack:"function,omitempty"`
	Path        []string `json:"path,omitempty" msgpack:"path,omitempty"`
	Class       string   `json:"class,omitempty" msgpack:"class,omitempty"`
	InstanceID  string   `json:"instance_id,omitempty" msgpack:"instance_id,omitempty"`
	Method      string   `json:"method,omitempty" msgpack:"method,omitempty"`
	Args        []any    `json:"args,omitempty" msgpack:"args,omitempty"`
}

// Response is the envelope for every outcome. A successful response carries
// at most one payload field and no Error; a failed one carries only Error.
type Response struct {
	ID         string `json:"id,omitempty" msgpack:"id,omitempty"`
	Success    bool   `json:"success" msgpack:"success"`
	Result     *Value `json:"result,omitempty" msgpack:"result,omitempty"`
	Module     string `json:"module,omitempty" msgpack:"module,omitempty"`
	Package    string `json:"package,omitempty" msgpack:"package,omitempty"`
	InstanceID string `json:"instance_id,omitempty" msgpack:"instance_id,omitempty"`
	Error      string `json:"error,omitempty" msgpack:"error,omitempty"`
}

func resultResponse(v Value) *Response {
	return &Response{Result: &v}
}

// Value returns the result payload, Null when absent.
func (r *Response) Value() Value {
	if r.Result == nil {
		return Null
	}
	return *r.Result
}
