package zalando_operator

import (
	"context"
	"testing"

	acidv1 "github.com/zalando/postgres-operator/pkg/apis/acid.zalan.do/v1"
	acidfake "github.com/zalando/postgres-operator/pkg/generated/clientset/versioned/fake"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"gfx.cafe/gfx/dbchain/lib/catalog"
	"gfx.cafe/gfx/dbchain/lib/k8s"
)

func pod(name, role, ip string, ready bool) *corev1.Pod {
	p := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: "db",
			Labels: map[string]string{
				"cluster-name": "acid-orders",
			},
		},
		Status: corev1.PodStatus{
			Phase: corev1.PodRunning,
			PodIP: ip,
		},
	}
	if role != "" {
		p.Labels["spilo-role"] = role
	}
	if ready {
		p.Status.Conditions = []corev1.PodCondition{{Type: corev1.PodReady, Status: corev1.ConditionTrue}}
	}
	return p
}

func testDiscoverer() *Discoverer {
	core := fake.NewSimpleClientset(
		pod("acid-orders-0", "master", "10.0.0.10", true),
		pod("acid-orders-1", "replica", "10.0.0.11", true),
		pod("acid-orders-2", "replica", "", false),
		pod("acid-orders-3", "", "10.0.0.13", true),
		&corev1.Pod{ObjectMeta: metav1.ObjectMeta{Name: "other-0", Namespace: "db", Labels: map[string]string{"cluster-name": "other"}}},
		&corev1.Secret{
			ObjectMeta: metav1.ObjectMeta{Name: "postgres.acid-orders.credentials.postgresql.acid.zalan.do", Namespace: "db"},
			Data:       map[string][]byte{"username": []byte("postgres"), "password": []byte("hunter2")},
		},
	)
	acid := acidfake.NewSimpleClientset(&acidv1.Postgresql{
		ObjectMeta: metav1.ObjectMeta{Name: "acid-orders", Namespace: "db"},
	})
	return New(Config{Namespace: k8s.NamespaceMatcher{Namespace: "db"}}, core, acid, nil)
}

func TestRawTopology(t *testing.T) {
	d := testDiscoverer()

	raw, err := d.RawTopology(context.Background(), "acid-orders")
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) != 4 {
		t.Fatalf("expected the 4 cluster pods, got %+v", raw)
	}

	if n := raw["acid-orders-0"]; n.Following != "" || n.Status != catalog.StatusAvailable {
		t.Errorf("unexpected master %+v", n)
	}
	if n := raw["acid-orders-1"]; n.Following != "acid-orders-0" || n.Status != catalog.StatusAvailable {
		t.Errorf("unexpected replica %+v", n)
	}
	if n := raw["acid-orders-2"]; n.Status != catalog.StatusUnavailable {
		t.Errorf("unready replica should be unavailable, got %+v", n)
	}
	if n := raw["acid-orders-3"]; n.Status != catalog.StatusUnavailable {
		t.Errorf("pod without role should be unavailable, got %+v", n)
	}

	if _, err = d.RawTopology(context.Background(), "missing"); err == nil {
		t.Error("expected an error for a missing cluster")
	}
}

func TestCredentials(t *testing.T) {
	d := testDiscoverer()

	creds, err := d.Credentials(context.Background(), "acid-orders")
	if err != nil {
		t.Fatal(err)
	}

	want := catalog.Endpoint{Host: "10.0.0.11", Port: 5432, Database: "postgres", Username: "postgres", Password: "hunter2"}
	if creds["acid-orders-1"] != want {
		t.Errorf("endpoint = %+v, want %+v", creds["acid-orders-1"], want)
	}
	if _, ok := creds["acid-orders-2"]; ok {
		t.Error("pod without ip should have no endpoint")
	}
}

func TestCredentialsMissingSecret(t *testing.T) {
	d := testDiscoverer()
	d.User = "app_user"

	creds, err := d.Credentials(context.Background(), "acid-orders")
	if err != nil {
		t.Fatal(err)
	}
	if len(creds) != 0 {
		t.Errorf("expected no endpoints without a secret, got %+v", creds)
	}
}
