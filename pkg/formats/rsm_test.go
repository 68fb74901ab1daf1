package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/Faultbox/prcexport/pkg/encoding"
)

// fixture assembles little-endian test files.
type fixture struct {
	bytes.Buffer
}

func (f *fixture) put(vals ...any) *fixture {
	for _, v := range vals {
		binary.Write(&f.Buffer, binary.LittleEndian, v)
	}
	return f
}

func (f *fixture) str(s string, size int) *fixture {
	f.Write(encoding.UTF8ToFixedString(s, size))
	return f
}

type rsmNodeDef struct {
	name, parent string
	vertices     [][3]float32
	faces        []RSMFace
	rotKeys      []RSMRotKeyframe
}

// makeRSM builds a v1.minor file with the given textures and nodes.
func makeRSM(minor uint8, textures []string, root string, nodes []rsmNodeDef) []byte {
	f := &fixture{}
	f.WriteString("GRSM")
	f.put(uint8(1), minor, int32(1000), int32(RSMShadingSmooth))
	if minor >= 4 {
		f.put(uint8(255))
	}
	f.Write(make([]byte, 16))

	f.put(int32(len(textures)))
	for _, tex := range textures {
		f.str(tex, 40)
	}
	f.str(root, 40)

	f.put(int32(len(nodes)))
	for _, n := range nodes {
		f.str(n.name, 40).str(n.parent, 40)
		f.put(int32(1), int32(0))
		f.put([9]float32{1, 0, 0, 0, 1, 0, 0, 0, 1})
		f.put([3]float32{}, [3]float32{1, 2, 3}, float32(0), [3]float32{}, [3]float32{1, 1, 1})

		f.put(int32(len(n.vertices)))
		for _, v := range n.vertices {
			f.put(v)
		}

		f.put(int32(len(n.vertices)))
		for range n.vertices {
			if minor >= 2 {
				f.put([4]uint8{255, 255, 255, 255})
			}
			f.put(float32(0.5), float32(0.5))
		}

		f.put(int32(len(n.faces)))
		for _, fc := range n.faces {
			f.put(fc.VertexIDs, fc.TexCoordIDs, fc.TextureID, uint16(0), fc.TwoSide)
			if minor >= 2 {
				f.put(fc.SmoothGroup)
			}
		}

		if minor < 5 {
			f.put(int32(0))
		}
		f.put(int32(len(n.rotKeys)))
		for _, k := range n.rotKeys {
			f.put(k.Frame, k.Quaternion)
		}
		if minor >= 5 {
			f.put(int32(0))
		}
	}

	f.put(int32(1))
	f.put([3]float32{2, 2, 2}, [3]float32{0, 1, 0}, [3]float32{})
	if minor >= 3 {
		f.put(int32(7))
	}
	return f.Bytes()
}

func triangleNode(name, parent string) rsmNodeDef {
	return rsmNodeDef{
		name:     name,
		parent:   parent,
		vertices: [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		faces:    []RSMFace{{VertexIDs: [3]uint16{0, 1, 2}, TexCoordIDs: [3]uint16{0, 1, 2}, TwoSide: 1, SmoothGroup: 3}},
		rotKeys:  []RSMRotKeyframe{{Frame: 0, Quaternion: [4]float32{0, 0, 0, 1}}},
	}
}

func TestParseRSM_MagicValidation(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"invalid magic", []byte("XXXX\x01\x05"), ErrInvalidRSMMagic},
		{"empty data", []byte{}, ErrTruncated},
		{"truncated magic", []byte{'G', 'R', 'S'}, ErrTruncated},
		{"truncated header", []byte("GRSM\x01\x05\x00"), ErrTruncated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRSM(tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseRSM_VersionSupport(t *testing.T) {
	tests := []struct {
		name    string
		major   uint8
		minor   uint8
		wantErr bool
	}{
		{"v1.1", 1, 1, false},
		{"v1.2", 1, 2, false},
		{"v1.3", 1, 3, false},
		{"v1.4", 1, 4, false},
		{"v1.5", 1, 5, false},
		{"v1.0 unsupported", 1, 0, true},
		{"v2.2 unsupported", 2, 2, true},
		{"v0.1 unsupported", 0, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := makeRSM(5, nil, "", nil)
			data[4], data[5] = tt.major, tt.minor
			if tt.major == 1 && tt.minor >= 1 && tt.minor <= 5 {
				data = makeRSM(tt.minor, nil, "", nil)
			}
			_, err := ParseRSM(data)
			if (err != nil) != tt.wantErr {
				t.Errorf("version %d.%d: got error=%v, wantErr=%v", tt.major, tt.minor, err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrUnsupportedRSMVersion) {
				t.Errorf("error %v does not wrap ErrUnsupportedRSMVersion", err)
			}
		})
	}
}

func TestRSMVersion_AtLeast(t *testing.T) {
	tests := []struct {
		version RSMVersion
		major   uint8
		minor   uint8
		want    bool
	}{
		{RSMVersion{1, 5}, 1, 5, true},
		{RSMVersion{1, 5}, 1, 4, true},
		{RSMVersion{1, 5}, 1, 6, false},
		{RSMVersion{1, 5}, 2, 0, false},
		{RSMVersion{2, 3}, 1, 9, true},
	}

	for _, tt := range tests {
		t.Run(tt.version.String(), func(t *testing.T) {
			if got := tt.version.AtLeast(tt.major, tt.minor); got != tt.want {
				t.Errorf("AtLeast(%d, %d) = %v, want %v", tt.major, tt.minor, got, tt.want)
			}
		})
	}
}

func TestRSMShadingType_String(t *testing.T) {
	tests := []struct {
		shading RSMShadingType
		want    string
	}{
		{RSMShadingNone, "None"},
		{RSMShadingFlat, "Flat"},
		{RSMShadingSmooth, "Smooth"},
		{RSMShadingType(99), "Unknown(99)"},
	}

	for _, tt := range tests {
		if got := tt.shading.String(); got != tt.want {
			t.Errorf("got %q, want %q", got, tt.want)
		}
	}
}

func TestParseRSM_Structure(t *testing.T) {
	for _, minor := range []uint8{1, 2, 3, 4, 5} {
		data := makeRSM(minor, []string{"wall.bmp", "나무.bmp"}, "root", []rsmNodeDef{
			triangleNode("root", ""),
			triangleNode("arm", "root"),
		})

		rsm, err := ParseRSM(data)
		if err != nil {
			t.Fatalf("v1.%d: ParseRSM failed: %v", minor, err)
		}

		if rsm.Shading != RSMShadingSmooth || rsm.AnimLength != 1000 {
			t.Errorf("v1.%d: header = %v/%d", minor, rsm.Shading, rsm.AnimLength)
		}
		if len(rsm.Textures) != 2 || rsm.Textures[1] != "나무.bmp" {
			t.Errorf("v1.%d: textures = %q", minor, rsm.Textures)
		}
		if len(rsm.Nodes) != 2 || rsm.Nodes[1].Parent != "root" {
			t.Fatalf("v1.%d: nodes = %+v", minor, rsm.Nodes)
		}

		n := rsm.Nodes[1]
		if n.Position != [3]float32{1, 2, 3} || n.Scale != [3]float32{1, 1, 1} {
			t.Errorf("v1.%d: transform = %v %v", minor, n.Position, n.Scale)
		}
		if len(n.Vertices) != 3 || len(n.TexCoords) != 3 || len(n.Faces) != 1 {
			t.Fatalf("v1.%d: mesh sizes %d/%d/%d", minor, len(n.Vertices), len(n.TexCoords), len(n.Faces))
		}
		if n.Faces[0].TwoSide != 1 || n.Faces[0].VertexIDs != [3]uint16{0, 1, 2} {
			t.Errorf("v1.%d: face = %+v", minor, n.Faces[0])
		}
		wantSmooth := int32(0)
		if minor >= 2 {
			wantSmooth = 3
		}
		if n.Faces[0].SmoothGroup != wantSmooth {
			t.Errorf("v1.%d: smooth group = %d, want %d", minor, n.Faces[0].SmoothGroup, wantSmooth)
		}
		if len(n.RotKeys) != 1 {
			t.Errorf("v1.%d: rot keys = %d", minor, len(n.RotKeys))
		}

		if len(rsm.VolumeBoxes) != 1 || rsm.VolumeBoxes[0].Size != [3]float32{2, 2, 2} {
			t.Errorf("v1.%d: boxes = %+v", minor, rsm.VolumeBoxes)
		}
		wantFlag := int32(0)
		if minor >= 3 {
			wantFlag = 7
		}
		if rsm.VolumeBoxes[0].Flag != wantFlag {
			t.Errorf("v1.%d: box flag = %d, want %d", minor, rsm.VolumeBoxes[0].Flag, wantFlag)
		}
	}
}

func TestParseRSM_Alpha(t *testing.T) {
	data := makeRSM(4, nil, "", nil)
	data[14] = 128

	rsm, err := ParseRSM(data)
	if err != nil {
		t.Fatalf("ParseRSM failed: %v", err)
	}
	want := float32(128) / 255
	if rsm.Alpha < want-0.01 || rsm.Alpha > want+0.01 {
		t.Errorf("Alpha = %f, want ~%f", rsm.Alpha, want)
	}

	rsm, err = ParseRSM(makeRSM(3, nil, "", nil))
	if err != nil {
		t.Fatalf("ParseRSM failed: %v", err)
	}
	if rsm.Alpha != 1 {
		t.Errorf("Alpha = %f, want 1 before v1.4", rsm.Alpha)
	}
}

func TestParseRSM_TruncatedNode(t *testing.T) {
	data := makeRSM(5, []string{"a.bmp"}, "root", []rsmNodeDef{triangleNode("root", "")})

	// Cut inside the node's texture coordinates.
	_, err := ParseRSM(data[:len(data)-120])
	if !errors.Is(err, ErrTruncated) {
		t.Errorf("got %v, want ErrTruncated", err)
	}
}

func TestParseRSM_BadCount(t *testing.T) {
	f := &fixture{}
	f.WriteString("GRSM")
	f.put(uint8(1), uint8(5), int32(0), int32(0), uint8(255))
	f.Write(make([]byte, 16))
	f.put(int32(-1))

	if _, err := ParseRSM(f.Bytes()); err == nil {
		t.Error("negative texture count accepted")
	}
}

func TestParseRSM_NoVolumeBoxes(t *testing.T) {
	data := makeRSM(5, nil, "", nil)
	// Drop the box count and the one box.
	data = data[:len(data)-4-36-4]

	rsm, err := ParseRSM(data)
	if err != nil {
		t.Fatalf("ParseRSM failed: %v", err)
	}
	if len(rsm.VolumeBoxes) != 0 {
		t.Errorf("boxes = %d, want 0", len(rsm.VolumeBoxes))
	}
}

func TestRSM_Counts(t *testing.T) {
	rsm := &RSM{
		Nodes: []RSMNode{
			{Vertices: make([][3]float32, 10), Faces: make([]RSMFace, 4)},
			{Vertices: make([][3]float32, 20), Faces: make([]RSMFace, 6)},
		},
	}

	if got := rsm.TotalVertexCount(); got != 30 {
		t.Errorf("TotalVertexCount() = %d, want 30", got)
	}
	if got := rsm.TotalFaceCount(); got != 10 {
		t.Errorf("TotalFaceCount() = %d, want 10", got)
	}
}

func TestRSM_Root(t *testing.T) {
	tests := []struct {
		name string
		rsm  *RSM
		want string
	}{
		{"named", &RSM{RootNode: "main", Nodes: []RSMNode{{Name: "other"}, {Name: "main"}}}, "main"},
		{"dangling", &RSM{RootNode: "gone", Nodes: []RSMNode{{Name: "a", Parent: "b"}, {Name: "b"}}}, "b"},
		{"empty", &RSM{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.rsm.Root()
			if tt.want == "" {
				if got != nil {
					t.Errorf("Root() = %q, want nil", got.Name)
				}
				return
			}
			if got == nil || got.Name != tt.want {
				t.Errorf("Root() = %v, want %q", got, tt.want)
			}
		})
	}
}

func TestRSM_Children(t *testing.T) {
	rsm := &RSM{
		Nodes: []RSMNode{
			{Name: "root"},
			{Name: "child1", Parent: "root"},
			{Name: "child2", Parent: "root"},
			{Name: "grandchild", Parent: "child1"},
			{Name: "loop", Parent: "loop"},
		},
	}

	if got := len(rsm.Children("root")); got != 2 {
		t.Errorf("got %d children of root, want 2", got)
	}
	if got := len(rsm.Children("child1")); got != 1 {
		t.Errorf("got %d children of child1, want 1", got)
	}
	if got := len(rsm.Children("loop")); got != 0 {
		t.Errorf("self-parented node listed as its own child")
	}
}

func TestRSM_HasAnimation(t *testing.T) {
	twoKeys := []RSMRotKeyframe{{Frame: 0}, {Frame: 100}}

	tests := []struct {
		name   string
		length int32
		nodes  []RSMNode
		want   bool
	}{
		{"no keys", 1000, []RSMNode{{Name: "node"}}, false},
		{"single key is a pose", 1000, []RSMNode{{RotKeys: twoKeys[:1]}}, false},
		{"rotation track", 1000, []RSMNode{{RotKeys: twoKeys}}, true},
		{"zero length", 0, []RSMNode{{RotKeys: twoKeys}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rsm := &RSM{AnimLength: tt.length, Nodes: tt.nodes}
			if got := rsm.HasAnimation(); got != tt.want {
				t.Errorf("HasAnimation() = %v, want %v", got, tt.want)
			}
		})
	}
}
