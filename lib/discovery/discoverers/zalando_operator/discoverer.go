package zalando_operator

import (
	"context"
	"fmt"
	"strings"

	"github.com/caddyserver/caddy/v2"
	acidzalando "github.com/zalando/postgres-operator/pkg/apis/acid.zalan.do"
	acidv1 "github.com/zalando/postgres-operator/pkg/apis/acid.zalan.do/v1"
	"github.com/zalando/postgres-operator/pkg/generated/clientset/versioned"
	"github.com/zalando/postgres-operator/pkg/util"
	"github.com/zalando/postgres-operator/pkg/util/config"
	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"gfx.cafe/gfx/dbchain/lib/catalog"
	"gfx.cafe/gfx/dbchain/lib/discovery"
)

func init() {
	caddy.RegisterModule((*Discoverer)(nil))
}

const (
	roleMaster  = "master"
	roleReplica = "replica"
)

// Discoverer reads the spilo pods of a postgresql resource managed by the
// zalando postgres operator. The cluster id is the name of the resource; node
// names are pod names.
type Discoverer struct {
	Config

	core kubernetes.Interface
	acid versioned.Interface

	log *zap.Logger
}

func New(config Config, core kubernetes.Interface, acid versioned.Interface, log *zap.Logger) *Discoverer {
	T := &Discoverer{
		Config: config,
		core:   core,
		acid:   acid,
		log:    log,
	}
	T.defaults()
	return T
}

func (T *Discoverer) CaddyModule() caddy.ModuleInfo {
	return caddy.ModuleInfo{
		ID: "dbchain.discoverers.zalando_operator",
		New: func() caddy.Module {
			return new(Discoverer)
		},
	}
}

func (T *Discoverer) defaults() {
	T.SecretNameTemplate = util.Coalesce(T.SecretNameTemplate, "{username}.{cluster}.credentials.{tprkind}.{tprgroup}")
	T.ClusterNameLabel = util.Coalesce(T.ClusterNameLabel, "cluster-name")
	T.RoleLabel = util.Coalesce(T.RoleLabel, "spilo-role")
	T.User = util.Coalesce(T.User, "postgres")
	T.Database = util.Coalesce(T.Database, "postgres")
	if T.Port == 0 {
		T.Port = 5432
	}
	if T.log == nil {
		T.log = zap.NewNop()
	}
}

func (T *Discoverer) Provision(ctx caddy.Context) error {
	T.log = ctx.Logger().With(zap.String("discoverer", "zalando_operator"))
	T.defaults()

	restConfig, err := rest.InClusterConfig()
	if err != nil {
		return err
	}
	T.core, err = kubernetes.NewForConfig(restConfig)
	if err != nil {
		return err
	}
	T.acid, err = versioned.NewForConfig(restConfig)
	if err != nil {
		return err
	}
	return nil
}

func (T *Discoverer) pods(ctx context.Context, clusterID string) (*acidv1.Postgresql, []corev1.Pod, error) {
	namespace := T.Namespace.NamespaceOrDefault()

	cluster, err := T.acid.AcidV1().Postgresqls(namespace).Get(ctx, clusterID, metav1.GetOptions{})
	if err != nil {
		return nil, nil, err
	}

	opts := metav1.ListOptions{
		LabelSelector: fmt.Sprintf("%s=%s", T.ClusterNameLabel, cluster.Name),
	}
	T.Namespace.TweakListOptions(&opts)

	pods, err := T.core.CoreV1().Pods(namespace).List(ctx, opts)
	if err != nil {
		return nil, nil, err
	}
	return cluster, pods.Items, nil
}

func podStatus(pod *corev1.Pod) catalog.Status {
	if pod.Status.Phase != corev1.PodRunning {
		return catalog.Status(strings.ToLower(string(pod.Status.Phase)))
	}
	for _, cond := range pod.Status.Conditions {
		if cond.Type == corev1.PodReady && cond.Status == corev1.ConditionTrue {
			return catalog.StatusAvailable
		}
	}
	return catalog.StatusUnavailable
}

func (T *Discoverer) RawTopology(ctx context.Context, clusterID string) (map[string]discovery.RawNode, error) {
	cluster, pods, err := T.pods(ctx, clusterID)
	if err != nil {
		return nil, err
	}

	// replicas follow the master pod, or the cluster itself while no master
	// is elected
	leader := cluster.Name
	for i := range pods {
		if pods[i].Labels[T.RoleLabel] == roleMaster {
			leader = pods[i].Name
			break
		}
	}

	res := make(map[string]discovery.RawNode, len(pods))
	for i := range pods {
		pod := &pods[i]
		node := discovery.RawNode{
			Name:   pod.Name,
			Status: podStatus(pod),
		}
		switch pod.Labels[T.RoleLabel] {
		case roleMaster:
		case roleReplica:
			node.Following = leader
		default:
			// role not assigned yet, never serve it
			node.Following = leader
			node.Status = catalog.StatusUnavailable
		}
		res[pod.Name] = node
	}
	return res, nil
}

func (T *Discoverer) Credentials(ctx context.Context, clusterID string) (map[string]catalog.Endpoint, error) {
	cluster, pods, err := T.pods(ctx, clusterID)
	if err != nil {
		return nil, err
	}

	res := make(map[string]catalog.Endpoint, len(pods))

	secretName := config.StringTemplate(T.SecretNameTemplate).Format(
		"username", strings.ReplaceAll(T.User, "_", "-"),
		"cluster", cluster.Name,
		"tprkind", acidv1.PostgresCRDResourceKind,
		"tprgroup", acidzalando.GroupName,
	)
	secret, err := T.core.CoreV1().Secrets(cluster.Namespace).Get(ctx, secretName, metav1.GetOptions{})
	if err != nil {
		T.log.Warn("failed to get secret for user",
			zap.String("user", T.User),
			zap.String("secret", secretName),
			zap.String("cluster", cluster.Name),
			zap.Error(err))
		return res, nil
	}
	password, ok := secret.Data["password"]
	if !ok {
		T.log.Warn("no password in secret",
			zap.String("secret", secretName),
			zap.String("cluster", cluster.Name))
		return res, nil
	}
	username := T.User
	if u, ok := secret.Data["username"]; ok {
		username = string(u)
	}

	for i := range pods {
		if pods[i].Status.PodIP == "" {
			continue
		}
		res[pods[i].Name] = catalog.Endpoint{
			Host:     pods[i].Status.PodIP,
			Port:     T.Port,
			Database: T.Database,
			Username: username,
			Password: string(password),
		}
	}
	return res, nil
}

var (
	_ discovery.Source  = (*Discoverer)(nil)
	_ caddy.Module      = (*Discoverer)(nil)
	_ caddy.Provisioner = (*Discoverer)(nil)
)
