package topology

import "testing"

func TestParseRestartPolicy(t *testing.T) {
	cases := []struct {
		raw     string
		want    RestartPolicy
		wantErr bool
	}{
		{raw: "", want: RestartPolicy{Mode: RestartNone}},
		{raw: "no", want: RestartPolicy{Mode: RestartNone}},
		{raw: "none", want: RestartPolicy{Mode: RestartNone}},
		{raw: "always", want: RestartPolicy{Mode: RestartAlways}},
		{raw: "unless-stopped", want: RestartPolicy{Mode: RestartUnlessStopped}},
		{raw: "on-failure", want: RestartPolicy{Mode: RestartOnFailure}},
		{raw: "on-failure:5", want: RestartPolicy{Mode: RestartOnFailure, MaxRetries: 5}},
		{raw: " always ", want: RestartPolicy{Mode: RestartAlways}},
		{raw: "on-failure:-1", wantErr: true},
		{raw: "on-failure:x", wantErr: true},
		{raw: "sometimes", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := ParseRestartPolicy(tc.raw)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParseRestartPolicy(%q) = %+v, want error", tc.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRestartPolicy(%q) error = %v", tc.raw, err)
			}
			if got != tc.want {
				t.Fatalf("ParseRestartPolicy(%q) = %+v, want %+v", tc.raw, got, tc.want)
			}
		})
	}
}

func TestPortMappingString(t *testing.T) {
	p := PortMapping{HostPort: 8888, ContainerPort: 8888, Protocol: "tcp"}
	if got := p.String(); got != "8888:8888/tcp" {
		t.Fatalf("String() = %q, want 8888:8888/tcp", got)
	}

	p = PortMapping{HostIP: "127.0.0.1", HostPort: 9000, ContainerPort: 80, Protocol: "tcp"}
	if got := p.String(); got != "127.0.0.1:9000:80/tcp" {
		t.Fatalf("String() = %q, want 127.0.0.1:9000:80/tcp", got)
	}
}
