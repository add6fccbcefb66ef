package mysqlwire

import "testing"

func TestLenencIntRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 250, 251, 65535, 65536, 1 << 23, 1 << 25, 1 << 40}
	for _, v := range cases {
		buf := PutLenencInt(nil, v)
		got, off, err := ReadLenencInt(buf, 0)
		if err != nil {
			t.Fatalf("ReadLenencInt(%d): %v", v, err)
		}
		if got != v || off != len(buf) {
			t.Fatalf("ReadLenencInt(%d) = %d, off %d; want %d, off %d", v, got, off, v, len(buf))
		}
	}
}

func TestLenencStrRoundTrip(t *testing.T) {
	buf := PutLenencStr(nil, []byte("hello world"))
	got, off, err := ReadLenencStr(buf, 0)
	if err != nil {
		t.Fatalf("ReadLenencStr: %v", err)
	}
	if string(got) != "hello world" || off != len(buf) {
		t.Fatalf("got %q, off %d", got, off)
	}
}

func TestReadNulStr(t *testing.T) {
	buf := append([]byte("abc"), 0, 'x')
	got, off, err := ReadNulStr(buf, 0)
	if err != nil {
		t.Fatalf("ReadNulStr: %v", err)
	}
	if string(got) != "abc" || off != 4 {
		t.Fatalf("got %q, off %d", got, off)
	}
}

func TestReadLenencIntInvalidMarker(t *testing.T) {
	if _, _, err := ReadLenencInt([]byte{0xfb}, 0); err != ErrInvalidLenenc {
		t.Fatalf("err = %v, want ErrInvalidLenenc", err)
	}
}
